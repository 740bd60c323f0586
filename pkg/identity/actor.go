// Package identity describes who is acting: an on-chain address and a role.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type Role string

const (
	RoleBorrower Role = "borrower"
	RoleLender   Role = "lender"
)

var ErrNoProfile = errors.New("identity: profile not loaded")

// Actor is the current user's profile as far as loan submission cares.
type Actor struct {
	Address common.Address
	Role    Role
}

// HasAddress reports whether the actor resolved to a usable on-chain address.
func (a Actor) HasAddress() bool { return a.Address != (common.Address{}) }

// Provider resolves the actor for a request.
type Provider interface {
	Current(ctx context.Context) (Actor, error)
}

// Static always returns the same actor. The CLIs use it with the address
// from config.
type Static Actor

func (s Static) Current(context.Context) (Actor, error) { return Actor(s), nil }

// ParseActor builds an actor from a hex address and a role name. An empty
// address yields an actor without an address rather than an error, which
// the orchestrator reports as missing identity.
func ParseActor(address, role string) (Actor, error) {
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case "":
		r = RoleBorrower
	case RoleBorrower, RoleLender:
	default:
		return Actor{}, fmt.Errorf("unknown role %q", role)
	}

	address = strings.TrimSpace(address)
	if address == "" {
		return Actor{Role: r}, nil
	}
	if !common.IsHexAddress(address) {
		return Actor{}, fmt.Errorf("invalid address %q", address)
	}
	return Actor{Address: common.HexToAddress(address), Role: r}, nil
}

type ctxKey struct{}

// WithActor stores a resolved actor on ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext is the Provider for request-scoped actors set with WithActor.
type FromContext struct{}

func (FromContext) Current(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	if !ok {
		return Actor{}, ErrNoProfile
	}
	return a, nil
}

// Headers carrying the caller's profile on the HTTP intake. Authentication
// happens upstream; by the time a request reaches us these are trusted.
const (
	HeaderAddress = "X-Actor-Address"
	HeaderRole    = "X-Actor-Role"
)

// FromHeader reads the actor from HeaderAddress and HeaderRole.
func FromHeader(h http.Header) (Actor, error) {
	return ParseActor(h.Get(HeaderAddress), h.Get(HeaderRole))
}
