// Package storagehash derives the content address a loan carries for its
// off-chain supporting data.
package storagehash

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Compute returns the CIDv1 (raw codec, sha2-256) of data, base32 encoded,
// i.e. what `ipfs add --cid-version=1 --raw-leaves` reports for a single
// block.
func Compute(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// Matches reports whether hash addresses data.
func Matches(hash string, data []byte) (bool, error) {
	c, err := cid.Decode(hash)
	if err != nil {
		return false, fmt.Errorf("decode cid: %w", err)
	}
	got, err := c.Prefix().Sum(data)
	if err != nil {
		return false, err
	}
	return got.Equals(c), nil
}
