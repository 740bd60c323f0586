package loan

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage is a user-facing progress step of an attempt.
type Stage string

const (
	StageInitiating        Stage = "initiating"
	StageAwaitingSignature Stage = "awaiting_signature"
	StageTransactionSent   Stage = "transaction_sent"
	StageSubmitted         Stage = "submitted"
	StageRejected          Stage = "rejected"
	StageFailed            Stage = "failed"
)

// Event is one status transition.
type Event struct {
	AttemptID uuid.UUID      `json:"attempt_id"`
	Stage     Stage          `json:"stage"`
	Actor     common.Address `json:"actor"`
	TxHash    string         `json:"tx_hash,omitempty"`
	Message   string         `json:"message"`
	At        time.Time      `json:"at"`
}

// Reporter receives status transitions. Errors are logged and otherwise
// ignored; they never change an outcome.
type Reporter interface {
	Report(ctx context.Context, ev Event) error
}

type ReporterFunc func(ctx context.Context, ev Event) error

func (f ReporterFunc) Report(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogReporter writes events to a zerolog logger.
type LogReporter struct {
	Log zerolog.Logger
}

func (r LogReporter) Report(_ context.Context, ev Event) error {
	e := r.Log.Info()
	if ev.Stage == StageFailed {
		e = r.Log.Warn()
	}
	e.Str("attempt", ev.AttemptID.String()).
		Str("stage", string(ev.Stage)).
		Str("actor", ev.Actor.Hex()).
		Str("tx", ev.TxHash).
		Msg(ev.Message)
	return nil
}

// MultiReporter fans out to every reporter and joins their errors.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Event) error { return nil }
