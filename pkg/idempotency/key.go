// Package idempotency suppresses duplicate loan submissions that arrive
// while an earlier identical one is still held (double clicks, client
// retries). The hold time is the ttl passed to Acquire.
package idempotency

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Guard hands out a key at most once until it expires or is released.
type Guard interface {
	// Acquire reports false when key is already held.
	Acquire(ctx context.Context, key common.Hash, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key common.Hash) error
}

// Key returns keccak256( pad32(actor) ‖ pad32(amount) ‖ keccak256(storageHash) ).
// The key has no time component; the ttl given to Acquire bounds how long
// identical requests collide.
func Key(actor common.Address, amount *big.Int, storageHash string) common.Hash {
	var buf [96]byte

	copy(buf[12:32], actor.Bytes())
	if amount.BitLen() <= 256 {
		amount.FillBytes(buf[32:64])
	} else {
		copy(buf[32:64], crypto.Keccak256(amount.Bytes()))
	}
	copy(buf[64:96], crypto.Keccak256([]byte(storageHash)))

	return crypto.Keccak256Hash(buf[:])
}
