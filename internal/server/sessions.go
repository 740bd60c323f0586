package server

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/manteia/pkg/zkproof"
)

// sessions holds the latest proof artifact per borrower, standing in for
// the browser session the proof generator writes to.
type sessions struct {
	mu     sync.RWMutex
	proofs map[common.Address]*zkproof.Artifact
}

func newSessions() *sessions {
	return &sessions{proofs: make(map[common.Address]*zkproof.Artifact)}
}

func (s *sessions) get(addr common.Address) *zkproof.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proofs[addr]
}

func (s *sessions) put(addr common.Address, a *zkproof.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proofs[addr] = a
}

func (s *sessions) drop(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.proofs, addr)
}
