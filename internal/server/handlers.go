package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/manteia/internal/loan"
	"github.com/yourorg/manteia/pkg/identity"
	"github.com/yourorg/manteia/pkg/risk"
	"github.com/yourorg/manteia/pkg/storagehash"
	"github.com/yourorg/manteia/pkg/units"
	"github.com/yourorg/manteia/pkg/zkproof"
)

const maxArtifactBytes = 1 << 20

func (s *Server) putProof(c *gin.Context) {
	actor := actorOf(c)
	if !actor.HasAddress() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User profile not loaded"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxArtifactBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	artifact, err := zkproof.ReadArtifact(bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if artifact.StorageHash == "" {
		// Nothing was pinned; address the artifact document itself.
		if artifact.StorageHash, err = storagehash.Compute(body); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not address artifact"})
			return
		}
	}

	s.sessions.put(actor.Address, artifact)
	c.JSON(http.StatusCreated, gin.H{"ipfsHash": artifact.StorageHash})
}

func (s *Server) dropProof(c *gin.Context) {
	s.sessions.drop(actorOf(c).Address)
	c.Status(http.StatusNoContent)
}

type loanForm struct {
	Amount  string `json:"amount" binding:"required"`
	Purpose string `json:"purpose"`
	Sector  string `json:"sector"`
}

type submitResponse struct {
	AttemptID string    `json:"attempt_id"`
	Kind      loan.Kind `json:"kind"`
	TxHash    string    `json:"tx_hash,omitempty"`
	RiskScore int       `json:"risk_score,omitempty"`
	Error     string    `json:"error,omitempty"`
	// Next is set for NeedsProof: where the client should go first.
	Next string `json:"next,omitempty"`
}

var kindStatus = map[loan.Kind]int{
	loan.KindSubmitted:         http.StatusCreated,
	loan.KindNeedsProof:        http.StatusConflict,
	loan.KindMissingIdentity:   http.StatusUnauthorized,
	loan.KindShapeError:        http.StatusUnprocessableEntity,
	loan.KindUserRejected:      http.StatusConflict,
	loan.KindTransactionFailed: http.StatusBadGateway,
	loan.KindPersistenceFailed: http.StatusInternalServerError,
	loan.KindDuplicate:         http.StatusConflict,
}

func (s *Server) submitLoan(c *gin.Context) {
	actor := actorOf(c)
	if actor.Role == identity.RoleLender {
		c.JSON(http.StatusForbidden, gin.H{"error": "Lenders cannot request loans"})
		return
	}

	var form loanForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	amount, err := units.ParseAmount(form.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var proof *zkproof.Artifact
	if actor.HasAddress() {
		proof = s.sessions.get(actor.Address)
	}
	out := s.submitter.Submit(c.Request.Context(), loan.Request{
		Amount:  amount,
		Purpose: form.Purpose,
		Sector:  form.Sector,
	}, proof, actor)

	resp := submitResponse{
		AttemptID: out.AttemptID.String(),
		Kind:      out.Kind,
		RiskScore: out.RiskScore,
	}
	if out.OnChain() {
		resp.TxHash = out.TxHash.Hex()
	}
	switch {
	case out.Kind == loan.KindNeedsProof:
		resp.Next = "/v1/proofs"
	case out.Diagnostic != "":
		resp.Error = out.Diagnostic
	case out.Err != nil && !out.Quiet():
		resp.Error = out.Err.Error()
	}
	if out.Err != nil && !out.Quiet() {
		_ = c.Error(out.Err)
	}

	status, ok := kindStatus[out.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, resp)
}

func (s *Server) listLoans(c *gin.Context) {
	actor := actorOf(c)
	if !actor.HasAddress() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User profile not loaded"})
		return
	}
	rows, err := s.loans.LoansByBorrower(c.Request.Context(), actor.Address.Hex())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list loans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": rows})
}

func (s *Server) previewScore(c *gin.Context) {
	amount, err := units.ParseAmount(c.Query("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	revenue := s.baseline
	if v := c.Query("revenue"); v != "" {
		if revenue, err = strconv.ParseFloat(v, 64); err != nil || revenue < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid revenue"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"risk_score": risk.Score(revenue, amount.Float64())})
}
