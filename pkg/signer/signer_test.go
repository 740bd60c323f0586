package signer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/require"
)

/* ---------------- fake node ---------------- */

type rpcErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFn func(params json.RawMessage) (any, *rpcErr)

type fakeNode struct {
	mu      sync.Mutex
	calls   []string
	rawTxs  []string
	methods map[string]handlerFn
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{}
	n.methods = map[string]handlerFn{
		"eth_getTransactionCount": func(json.RawMessage) (any, *rpcErr) { return "0x7", nil },
		"eth_sendRawTransaction": func(p json.RawMessage) (any, *rpcErr) {
			var params []string
			_ = json.Unmarshal(p, &params)
			n.mu.Lock()
			n.rawTxs = append(n.rawTxs, params[0])
			n.mu.Unlock()
			return "0x" + common.Bytes2Hex(make([]byte, 32)), nil
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n.mu.Lock()
		n.calls = append(n.calls, req.Method)
		h, ok := n.methods[req.Method]
		n.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = rpcErr{Code: -32601, Message: "method not found: " + req.Method}
		} else if res, e := h(req.Params); e != nil {
			resp["error"] = e
		} else {
			resp["result"] = res
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return n, srv
}

/* ---------------- fixtures ---------------- */

var chainID = big.NewInt(5003)

func loanCall(t *testing.T, factory common.Address) Call {
	t.Helper()
	parsed, err := FactoryABI()
	require.NoError(t, err)
	return Call{
		Address: factory,
		ABI:     parsed,
		Method:  MethodRequestLoan,
		Args: []any{
			[2]*big.Int{big.NewInt(1), big.NewInt(2)},
			[2][2]*big.Int{{big.NewInt(4), big.NewInt(3)}, {big.NewInt(6), big.NewInt(5)}},
			[2]*big.Int{big.NewInt(7), big.NewInt(8)},
			[2]*big.Int{big.NewInt(100000), big.NewInt(55)},
			big.NewInt(10_000_000_000),
			"bafy",
		},
	}
}

/* ---------------- tests ---------------- */

func TestFactoryABIHasRequestLoan(t *testing.T) {
	parsed, err := FactoryABI()
	require.NoError(t, err)
	m, ok := parsed.Methods[MethodRequestLoan]
	require.True(t, ok)
	require.Len(t, m.Inputs, 6)
	require.Equal(t, "uint256[2][2]", m.Inputs[1].Type.String())
	require.Equal(t, "string", m.Inputs[5].Type.String())
}

func TestEthSignerSendsPackedRequestLoan(t *testing.T) {
	node, srv := newFakeNode(t)
	cli, err := ethclient.Dial(srv.URL)
	require.NoError(t, err)
	defer cli.Close()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from, sign, err := keyedSigner(key, chainID)
	require.NoError(t, err)

	s := NewEthSigner(cli, from, sign, WithLegacyGas(big.NewInt(20_000_000), 500_000))
	factory := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	call := loanCall(t, factory)

	hash, err := s.Send(context.Background(), call)
	require.NoError(t, err)
	require.Len(t, node.rawTxs, 1)

	raw, err := hexutil.Decode(node.rawTxs[0])
	require.NoError(t, err)
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))

	require.Equal(t, hash, tx.Hash())
	require.Equal(t, factory, *tx.To())
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(500_000), tx.Gas())

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), &tx)
	require.NoError(t, err)
	require.Equal(t, from, sender)

	method := call.ABI.Methods[MethodRequestLoan]
	require.Equal(t, method.ID, tx.Data()[:4])
	vals, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Equal(t, call.Args[1], vals[1])
	require.Equal(t, call.Args[4], vals[4])
	require.Equal(t, "bafy", vals[5])
}

func TestEthSignerRejectedByNode(t *testing.T) {
	node, srv := newFakeNode(t)
	node.methods["eth_sendRawTransaction"] = func(json.RawMessage) (any, *rpcErr) {
		return nil, &rpcErr{Code: 4001, Message: "User denied transaction signature."}
	}
	cli, err := ethclient.Dial(srv.URL)
	require.NoError(t, err)
	defer cli.Close()

	key, _ := crypto.GenerateKey()
	from, sign, err := keyedSigner(key, chainID)
	require.NoError(t, err)
	s := NewEthSigner(cli, from, sign, WithLegacyGas(big.NewInt(1), 21_000))

	_, err = s.Send(context.Background(), loanCall(t, common.HexToAddress("0x01")))
	require.Error(t, err)
	require.True(t, errors.Is(Classify(err), ErrUserRejected))
}

func TestEthSignerBadArgs(t *testing.T) {
	_, srv := newFakeNode(t)
	cli, err := ethclient.Dial(srv.URL)
	require.NoError(t, err)
	defer cli.Close()

	key, _ := crypto.GenerateKey()
	from, sign, _ := keyedSigner(key, chainID)
	s := NewEthSigner(cli, from, sign, WithLegacyGas(big.NewInt(1), 21_000))

	call := loanCall(t, common.HexToAddress("0x01"))
	call.Args = call.Args[:5]
	_, err = s.Send(context.Background(), call)
	require.Error(t, err)

	var txErr *TxError
	require.True(t, errors.As(Classify(err), &txErr))
}

func TestClefDenial(t *testing.T) {
	node, srv := newFakeNode(t)
	node.methods["account_version"] = func(json.RawMessage) (any, *rpcErr) { return "6.1.0", nil }
	node.methods["account_signTransaction"] = func(json.RawMessage) (any, *rpcErr) {
		return nil, &rpcErr{Code: -32000, Message: "Request denied"}
	}

	sign, err := ClefSigner(srv.URL, chainID)
	require.NoError(t, err)

	cli, err := ethclient.Dial(srv.URL)
	require.NoError(t, err)
	defer cli.Close()

	from := common.HexToAddress("0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
	s := NewEthSigner(cli, from, sign, WithLegacyGas(big.NewInt(1), 100_000))
	_, err = s.Send(context.Background(), loanCall(t, common.HexToAddress("0x01")))
	require.True(t, errors.Is(Classify(err), ErrUserRejected), "got %v", err)
	require.NotContains(t, node.calls, "eth_sendRawTransaction")
}

func TestKeyedSignerFromHex(t *testing.T) {
	key, _ := crypto.GenerateKey()
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	from, sign, err := KeyedSigner(hexKey, chainID)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)
	require.NotNil(t, sign)

	_, _, err = KeyedSigner("zz", chainID)
	require.Error(t, err)
}
