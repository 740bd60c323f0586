package loan

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/yourorg/manteia/pkg/units"
)

// Kind discriminates how a submission attempt ended.
type Kind int

const (
	KindSubmitted Kind = iota
	// KindNeedsProof means no proof has been generated yet; the caller should
	// send the user through proof generation. Not a failure.
	KindNeedsProof
	KindMissingIdentity
	// KindShapeError is a malformed proof; nothing was sent.
	KindShapeError
	// KindUserRejected is the wallet user declining; expected, stay quiet.
	KindUserRejected
	KindTransactionFailed
	// KindPersistenceFailed means the transaction went out but the
	// off-chain records did not all land. TxHash is set.
	KindPersistenceFailed
	// KindDuplicate means an identical request is already in flight or was
	// just submitted.
	KindDuplicate
)

var kindNames = map[Kind]string{
	KindSubmitted:         "submitted",
	KindNeedsProof:        "needs_proof",
	KindMissingIdentity:   "missing_identity",
	KindShapeError:        "shape_error",
	KindUserRejected:      "user_rejected",
	KindTransactionFailed: "transaction_failed",
	KindPersistenceFailed: "persistence_failed",
	KindDuplicate:         "duplicate",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Request is one loan intent. Build a fresh one per attempt.
type Request struct {
	Amount  units.Amount
	Purpose string
	Sector  string
}

// Outcome is the result of Submit. Err carries the cause for every kind
// except KindSubmitted and KindNeedsProof.
type Outcome struct {
	Kind       Kind
	AttemptID  uuid.UUID
	TxHash     common.Hash
	RiskScore  int
	Diagnostic string
	Err        error
}

func (o Outcome) OK() bool { return o.Kind == KindSubmitted }

// Quiet reports outcomes the caller should not render as an error.
func (o Outcome) Quiet() bool {
	return o.Kind == KindNeedsProof || o.Kind == KindUserRejected
}

// OnChain reports whether a transaction was broadcast during the attempt.
func (o Outcome) OnChain() bool { return o.TxHash != (common.Hash{}) }
