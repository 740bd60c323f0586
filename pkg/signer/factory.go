package signer

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MethodRequestLoan is the verifier-gated entry point on the loan factory.
const MethodRequestLoan = "requestLoan"

//go:embed abi/ManteiaFactory.json
var factoryABI []byte

// FactoryABI parses the embedded loan factory ABI.
func FactoryABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(factoryABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("factory abi: %w", err)
	}
	return parsed, nil
}
