package signer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrUserRejected marks a request the wallet's user declined.
var ErrUserRejected = errors.New("signer: user rejected the request")

// codeUserRejected is EIP-1193's "User Rejected Request".
const codeUserRejected = 4001

const maxShort = 160

// TxError is any other failure to get a transaction out.
type TxError struct {
	Short string
	Err   error
}

func (e *TxError) Error() string { return "signer: " + e.Short }
func (e *TxError) Unwrap() error { return e.Err }

// IsUserRejection reports whether err is a wallet-side refusal.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "request denied")
}

// Classify maps err onto ErrUserRejected or a *TxError. Already classified
// errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return err
	}
	if IsUserRejection(err) {
		if errors.Is(err, ErrUserRejected) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	return &TxError{Short: shortMessage(err), Err: err}
}

// shortMessage prefers the node's own message over our wrapping.
func shortMessage(err error) string {
	msg := err.Error()
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		msg = rpcErr.Error()
	}
	msg, _, _ = strings.Cut(msg, "\n")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxShort {
		msg = msg[:maxShort] + "…"
	}
	return msg
}
