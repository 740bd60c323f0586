// Package loan drives a zk-gated loan request from proof to persisted intent.
package loan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourorg/manteia/pkg/identity"
	"github.com/yourorg/manteia/pkg/idempotency"
	"github.com/yourorg/manteia/pkg/risk"
	"github.com/yourorg/manteia/pkg/signer"
	"github.com/yourorg/manteia/pkg/store"
	"github.com/yourorg/manteia/pkg/units"
	"github.com/yourorg/manteia/pkg/zkproof"
)

// DefaultRevenueBaseline stands in for the borrower's monthly revenue until
// the circuit exposes it as a public signal.
const DefaultRevenueBaseline = 100000

const (
	defaultPersistTimeout = 10 * time.Second
	genericTxFailure      = "transaction submission failed"
	guardUnavailable      = "submission guard unavailable"
)

// ErrNoProof and ErrNoIdentity are the causes behind the two precondition
// outcomes.
var (
	ErrNoProof    = errors.New("loan: no proof for this session")
	ErrNoIdentity = errors.New("loan: actor has no on-chain address")
)

// Config holds the deployment-level parameters of the flow.
type Config struct {
	Factory common.Address
	ABI     abi.ABI

	// RevenueBaseline is the monthly revenue used for risk scoring.
	RevenueBaseline float64
	// RevenueFromSignal scores against publicSignals[0] (the proven revenue
	// floor) instead of RevenueBaseline.
	RevenueFromSignal bool

	// IdempotencyWindow is how long a submitted key is held.
	IdempotencyWindow time.Duration
	// PersistTimeout bounds the two inserts, which run detached from the
	// caller's context once the transaction is out.
	PersistTimeout time.Duration
}

// Orchestrator is safe for concurrent use; it keeps no per-call state.
type Orchestrator struct {
	cfg      Config
	signer   signer.Signer
	store    store.Store
	guard    idempotency.Guard
	reporter Reporter
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

// WithGuard enables duplicate suppression.
func WithGuard(g idempotency.Guard) Option { return func(o *Orchestrator) { o.guard = g } }

func WithReporter(r Reporter) Option { return func(o *Orchestrator) { o.reporter = r } }

func WithLogger(l zerolog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func New(cfg Config, s signer.Signer, st store.Store, opts ...Option) (*Orchestrator, error) {
	if s == nil || st == nil {
		return nil, fmt.Errorf("loan: signer and store are required")
	}
	if _, ok := cfg.ABI.Methods[signer.MethodRequestLoan]; !ok {
		return nil, fmt.Errorf("loan: abi has no %s method", signer.MethodRequestLoan)
	}
	if cfg.RevenueBaseline <= 0 {
		cfg.RevenueBaseline = DefaultRevenueBaseline
	}
	if cfg.IdempotencyWindow <= 0 {
		cfg.IdempotencyWindow = time.Minute
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}

	o := &Orchestrator{
		cfg:      cfg,
		signer:   s,
		store:    st,
		reporter: nopReporter{},
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Submit runs one attempt. It never retries: every failure ends the attempt
// and the caller may call again with the same proof.
func (o *Orchestrator) Submit(ctx context.Context, req Request, proof *zkproof.Artifact, actor identity.Actor) Outcome {
	out := Outcome{AttemptID: uuid.New()}
	log := o.log.With().Str("attempt", out.AttemptID.String()).Logger()

	// -----------------------------------------------------------------
	// Preconditions
	// -----------------------------------------------------------------
	if proof == nil {
		log.Debug().Msg("no proof yet, redirecting to proof generation")
		out.Kind, out.Err = KindNeedsProof, ErrNoProof
		return out
	}
	if !actor.HasAddress() {
		log.Warn().Msg("user profile not loaded")
		o.report(ctx, log, out, actor, StageFailed, "User profile not loaded")
		out.Kind, out.Err = KindMissingIdentity, ErrNoIdentity
		return out
	}
	log = log.With().Str("actor", actor.Address.Hex()).Logger()
	o.report(ctx, log, out, actor, StageInitiating, "Initiating loan request")

	// -----------------------------------------------------------------
	// Proof transform + amount conversion
	// -----------------------------------------------------------------
	args, err := zkproof.Transform(proof.Proof, proof.PublicSignals)
	if err != nil {
		log.Error().Err(err).Msg("malformed proof")
		out.Kind, out.Err, out.Diagnostic = KindShapeError, err, err.Error()
		o.report(ctx, log, out, actor, StageFailed, "Malformed proof")
		return out
	}
	// Checked after truncation: anything below one ledger unit would go out
	// as a zero-amount request.
	smallest := req.Amount.Smallest(units.StableDecimals)
	if smallest.Sign() <= 0 {
		out.Kind, out.Err = KindTransactionFailed, units.ErrNotPositive
		out.Diagnostic = units.ErrNotPositive.Error()
		o.report(ctx, log, out, actor, StageFailed, "Failed to submit loan")
		return out
	}

	// -----------------------------------------------------------------
	// Duplicate suppression
	// -----------------------------------------------------------------
	release, dup, err := o.acquire(ctx, actor, smallest, proof.StorageHash)
	if err != nil {
		log.Error().Err(err).Msg("idempotency guard")
		out.Kind, out.Err, out.Diagnostic = KindTransactionFailed, err, guardUnavailable
		o.report(ctx, log, out, actor, StageFailed, "Failed to submit loan")
		return out
	}
	if dup {
		log.Info().Msg("duplicate submission suppressed")
		out.Kind = KindDuplicate
		out.Err = fmt.Errorf("loan: identical request already submitted")
		return out
	}

	// -----------------------------------------------------------------
	// On-chain submission
	// -----------------------------------------------------------------
	a, b, c, input := args.ABI()
	call := signer.Call{
		Address: o.cfg.Factory,
		ABI:     o.cfg.ABI,
		Method:  signer.MethodRequestLoan,
		Args:    []any{a, b, c, input, smallest, proof.StorageHash},
	}
	o.report(ctx, log, out, actor, StageAwaitingSignature, "Please confirm transaction in your wallet")

	txHash, err := o.signer.Send(ctx, call)
	if err != nil {
		release()
		err = signer.Classify(err)
		out.Err = err
		if signer.IsUserRejection(err) {
			log.Info().Msg("transaction rejected by user")
			out.Kind = KindUserRejected
			o.report(ctx, log, out, actor, StageRejected, "Transaction rejected by user")
			return out
		}
		out.Kind = KindTransactionFailed
		out.Diagnostic = genericTxFailure
		var txErr *signer.TxError
		if errors.As(err, &txErr) && txErr.Short != "" {
			out.Diagnostic = txErr.Short
		}
		log.Error().Err(err).Msg("loan request failed")
		o.report(ctx, log, out, actor, StageFailed, "Failed to submit loan")
		return out
	}
	out.TxHash = txHash
	log = log.With().Str("tx", txHash.Hex()).Logger()
	log.Info().Msg("transaction submitted")
	o.report(ctx, log, out, actor, StageTransactionSent, "Transaction sent, waiting for confirmation")

	// -----------------------------------------------------------------
	// Risk score + off-chain records
	// -----------------------------------------------------------------
	out.RiskScore = risk.Score(o.revenue(proof), req.Amount.Float64())

	// The transaction is out; a caller going away must not cost us the record.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PersistTimeout)
	defer cancel()

	amount := req.Amount.String()
	if err := o.store.InsertLoan(pctx, &store.LoanRecord{
		BorrowerAddress: actor.Address.Hex(),
		Amount:          amount,
		Purpose:         req.Purpose,
		Sector:          req.Sector,
		RiskScore:       out.RiskScore,
		IPFSHash:        proof.StorageHash,
		TxHash:          txHash.Hex(),
		Status:          store.StatusPending,
	}); err != nil {
		return o.persistFailed(ctx, log, out, actor, err)
	}
	if err := o.store.InsertTransaction(pctx, &store.TransactionRecord{
		UserAddress: actor.Address.Hex(),
		Type:        store.TxTypeLoanRequest,
		Amount:      amount,
		TxHash:      txHash.Hex(),
		Status:      store.StatusPending,
	}); err != nil {
		return o.persistFailed(ctx, log, out, actor, err)
	}

	out.Kind = KindSubmitted
	log.Info().Int("risk_score", out.RiskScore).Msg("loan request submitted")
	o.report(ctx, log, out, actor, StageSubmitted, "Loan Request Submitted!")
	return out
}

func (o *Orchestrator) persistFailed(ctx context.Context, log zerolog.Logger, out Outcome, actor identity.Actor, err error) Outcome {
	if !errors.Is(err, store.ErrPersistence) {
		err = fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	// The chain has moved and the tables have not; reconciliation is out of band.
	log.Error().Err(err).Msg("loan records not persisted")
	out.Kind, out.Err, out.Diagnostic = KindPersistenceFailed, err, err.Error()
	o.report(ctx, log, out, actor, StageFailed, "Failed to submit loan")
	return out
}

// acquire takes the duplicate-suppression key. release is a no-op without
// a guard.
func (o *Orchestrator) acquire(ctx context.Context, actor identity.Actor, amount *big.Int, storageHash string) (release func(), dup bool, err error) {
	release = func() {}
	if o.guard == nil {
		return release, false, nil
	}

	key := idempotency.Key(actor.Address, amount, storageHash)
	ok, err := o.guard.Acquire(ctx, key, o.cfg.IdempotencyWindow)
	if err != nil {
		return release, false, err
	}
	if !ok {
		return release, true, nil
	}
	release = func() {
		if err := o.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			o.log.Warn().Err(err).Str("key", key.Hex()).Msg("release idempotency key")
		}
	}
	return release, false, nil
}

func (o *Orchestrator) revenue(proof *zkproof.Artifact) float64 {
	if !o.cfg.RevenueFromSignal {
		return o.cfg.RevenueBaseline
	}
	f, _ := new(big.Float).SetInt(proof.PublicSignals[0].Big()).Float64()
	return f
}

func (o *Orchestrator) report(ctx context.Context, log zerolog.Logger, out Outcome, actor identity.Actor, stage Stage, msg string) {
	ev := Event{
		AttemptID: out.AttemptID,
		Stage:     stage,
		Actor:     actor.Address,
		Message:   msg,
		At:        o.now().UTC(),
	}
	if out.OnChain() {
		ev.TxHash = out.TxHash.Hex()
		// Once broadcast, the status must reach subscribers like the records do.
		ctx = context.WithoutCancel(ctx)
	}
	if err := o.reporter.Report(ctx, ev); err != nil {
		log.Warn().Err(err).Str("stage", string(stage)).Msg("status report failed")
	}
}
