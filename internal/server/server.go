// Package server is the HTTP intake for borrowers: it keeps the proof for a
// session and turns loan forms into submissions.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yourorg/manteia/internal/loan"
	"github.com/yourorg/manteia/pkg/identity"
	"github.com/yourorg/manteia/pkg/store"
	"github.com/yourorg/manteia/pkg/zkproof"
)

// Submitter is satisfied by *loan.Orchestrator.
type Submitter interface {
	Submit(ctx context.Context, req loan.Request, proof *zkproof.Artifact, actor identity.Actor) loan.Outcome
}

// LoanLister is satisfied by *store.GormStore.
type LoanLister interface {
	LoansByBorrower(ctx context.Context, borrower string) ([]store.LoanRecord, error)
}

type Server struct {
	submitter Submitter
	loans     LoanLister
	baseline  float64
	sessions  *sessions
	log       zerolog.Logger
}

// New wires the handlers. baseline is the revenue figure used by the
// score preview endpoint when no revenue is given.
func New(s Submitter, loans LoanLister, baseline float64, log zerolog.Logger) *Server {
	return &Server{
		submitter: s,
		loans:     loans,
		baseline:  baseline,
		sessions:  newSessions(),
		log:       log,
	}
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog(), actorMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := r.Group("/v1")
	// POST   /v1/proofs   (store the proof artifact for this borrower)
	v1.POST("/proofs", s.putProof)
	// DELETE /v1/proofs   (forget it)
	v1.DELETE("/proofs", s.dropProof)
	// POST   /v1/loans    (submit a loan request with the stored proof)
	v1.POST("/loans", s.submitLoan)
	// GET    /v1/loans    (list this borrower's loans)
	v1.GET("/loans", s.listLoans)
	// GET    /v1/risk     (score preview)
	v1.GET("/risk", s.previewScore)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("http intake listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := s.log.Info()
		switch {
		case status >= 500:
			ev = s.log.Error()
		case status >= 400:
			ev = s.log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

// actorMiddleware resolves the caller from headers onto the request context.
// A request without an address still passes; the submission reports it.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := identity.FromHeader(c.Request.Header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func actorOf(c *gin.Context) identity.Actor {
	a, _ := identity.FromContext{}.Current(c.Request.Context())
	return a
}
