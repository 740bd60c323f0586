// Package signer submits contract calls through a wallet.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Call is one state-changing contract invocation.
type Call struct {
	Address common.Address
	ABI     abi.ABI
	Method  string
	Args    []any
}

// Signer submits a call and returns the transaction hash. It may block for
// as long as the wallet waits on its user.
type Signer interface {
	Send(ctx context.Context, call Call) (common.Hash, error)
}

// EthSigner signs with a bind.SignerFn and broadcasts over JSON-RPC.
type EthSigner struct {
	backend  bind.ContractBackend
	from     common.Address
	sign     bind.SignerFn
	gasPrice *big.Int
	gasLimit uint64
}

type Option func(*EthSigner)

// WithLegacyGas pins the gas price and limit, skipping fee estimation.
func WithLegacyGas(price *big.Int, limit uint64) Option {
	return func(s *EthSigner) {
		s.gasPrice = price
		s.gasLimit = limit
	}
}

func NewEthSigner(backend bind.ContractBackend, from common.Address, sign bind.SignerFn, opts ...Option) *EthSigner {
	s := &EthSigner{backend: backend, from: from, sign: sign}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *EthSigner) From() common.Address { return s.from }

func (s *EthSigner) Send(ctx context.Context, call Call) (common.Hash, error) {
	contract := bind.NewBoundContract(call.Address, call.ABI, s.backend, s.backend, s.backend)
	opts := &bind.TransactOpts{
		From:     s.from,
		Signer:   s.sign,
		Context:  ctx,
		GasPrice: s.gasPrice,
		GasLimit: s.gasLimit,
	}
	tx, err := contract.Transact(opts, call.Method, call.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", call.Method, err)
	}
	return tx.Hash(), nil
}

// Dial connects to an execution client.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return cli, nil
}

// KeyedSigner signs locally with a hex private key.
func KeyedSigner(hexKey string, chainID *big.Int) (common.Address, bind.SignerFn, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("private key: %w", err)
	}
	return keyedSigner(key, chainID)
}

func keyedSigner(key *ecdsa.PrivateKey, chainID *big.Int) (common.Address, bind.SignerFn, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return common.Address{}, nil, err
	}
	return auth.From, auth.Signer, nil
}

// ClefSigner forwards every transaction to a clef instance, which holds it
// until its operator approves or denies.
func ClefSigner(endpoint string, chainID *big.Int) (bind.SignerFn, error) {
	ext, err := external.NewExternalSigner(endpoint)
	if err != nil {
		return nil, fmt.Errorf("clef %s: %w", endpoint, err)
	}
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		return ext.SignTx(accounts.Account{Address: from}, tx, chainID)
	}, nil
}
