package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/manteia/internal/loan"
	"github.com/yourorg/manteia/pkg/identity"
	"github.com/yourorg/manteia/pkg/signer"
	"github.com/yourorg/manteia/pkg/store"
	"github.com/yourorg/manteia/pkg/units"
	"github.com/yourorg/manteia/pkg/zkproof"
)

const (
	borrower = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	artifact = `{
  "ipfsHash": "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku",
  "publicSignals": ["100000", "55"],
  "proof": {
    "pi_a": ["1", "2", "1"],
    "pi_b": [["3", "4"], ["5", "6"], ["1", "0"]],
    "pi_c": ["7", "8", "1"]
  }
}`
)

func init() { gin.SetMode(gin.TestMode) }

type call struct {
	req   loan.Request
	proof *zkproof.Artifact
	actor identity.Actor
}

type fakeSubmitter struct {
	calls []call
	out   loan.Outcome
}

func (f *fakeSubmitter) Submit(_ context.Context, req loan.Request, proof *zkproof.Artifact, actor identity.Actor) loan.Outcome {
	f.calls = append(f.calls, call{req, proof, actor})
	return f.out
}

type fakeLister struct {
	rows []store.LoanRecord
	err  error
}

func (f fakeLister) LoansByBorrower(context.Context, string) ([]store.LoanRecord, error) {
	return f.rows, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func asBorrower() map[string]string { return map[string]string{identity.HeaderAddress: borrower} }

func TestPutProofStoresAffineArtifact(t *testing.T) {
	sub := &fakeSubmitter{out: loan.Outcome{Kind: loan.KindSubmitted}}
	h := New(sub, fakeLister{}, 100000, zerolog.Nop()).Handler()

	w := do(t, h, http.MethodPost, "/v1/proofs", artifact, asBorrower())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "bafkreihdwdcefgh4")

	w = do(t, h, http.MethodPost, "/v1/loans", `{"amount":"10000","purpose":"stock","sector":"retail"}`, asBorrower())
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, sub.calls, 1)

	got := sub.calls[0]
	require.NotNil(t, got.proof)
	require.Len(t, got.proof.Proof.PointA, 2)
	require.Len(t, got.proof.Proof.PointB, 2)
	require.Equal(t, common.HexToAddress(borrower), got.actor.Address)
	require.Equal(t, "10000", got.req.Amount.String())
	require.Equal(t, "stock", got.req.Purpose)
}

func TestPutProofComputesMissingHash(t *testing.T) {
	s := New(&fakeSubmitter{}, fakeLister{}, 100000, zerolog.Nop())
	body := strings.Replace(artifact, `"bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"`, `""`, 1)

	w := do(t, s.Handler(), http.MethodPost, "/v1/proofs", body, asBorrower())
	require.Equal(t, http.StatusCreated, w.Code)

	stored := s.sessions.get(common.HexToAddress(borrower))
	require.NotNil(t, stored)
	require.True(t, strings.HasPrefix(stored.StorageHash, "bafkrei"))
}

func TestPutProofRequiresIdentity(t *testing.T) {
	h := New(&fakeSubmitter{}, fakeLister{}, 100000, zerolog.Nop()).Handler()
	w := do(t, h, http.MethodPost, "/v1/proofs", artifact, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodPost, "/v1/proofs", "{", asBorrower())
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitWithoutProofPassesNil(t *testing.T) {
	sub := &fakeSubmitter{out: loan.Outcome{Kind: loan.KindNeedsProof}}
	h := New(sub, fakeLister{}, 100000, zerolog.Nop()).Handler()

	w := do(t, h, http.MethodPost, "/v1/loans", `{"amount":"50"}`, asBorrower())
	require.Equal(t, http.StatusConflict, w.Code)
	require.Nil(t, sub.calls[0].proof)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "/v1/proofs", resp.Next)
	require.Empty(t, resp.Error)
}

func TestSubmitRejectsLenders(t *testing.T) {
	sub := &fakeSubmitter{}
	h := New(sub, fakeLister{}, 100000, zerolog.Nop()).Handler()

	w := do(t, h, http.MethodPost, "/v1/loans", `{"amount":"50"}`, map[string]string{
		identity.HeaderAddress: borrower,
		identity.HeaderRole:    "lender",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, sub.calls)
}

func TestSubmitValidatesForm(t *testing.T) {
	sub := &fakeSubmitter{}
	h := New(sub, fakeLister{}, 100000, zerolog.Nop()).Handler()

	for _, body := range []string{`{}`, `{"amount":"-5"}`, `{"amount":"0"}`, `{"amount":"1e3"}`, `nope`} {
		w := do(t, h, http.MethodPost, "/v1/loans", body, asBorrower())
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	require.Empty(t, sub.calls)

	w := do(t, h, http.MethodPost, "/v1/loans", `{"amount":"5"}`, map[string]string{identity.HeaderAddress: "0x12"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitStatusMapping(t *testing.T) {
	tx := common.HexToHash("0xbeef")
	cases := []struct {
		out  loan.Outcome
		code int
		err  string
	}{
		{loan.Outcome{Kind: loan.KindSubmitted, TxHash: tx, RiskScore: 98}, http.StatusCreated, ""},
		{loan.Outcome{Kind: loan.KindMissingIdentity, Err: loan.ErrNoIdentity}, http.StatusUnauthorized, loan.ErrNoIdentity.Error()},
		{loan.Outcome{Kind: loan.KindShapeError, Err: errors.New("x"), Diagnostic: "bad pi_b"}, http.StatusUnprocessableEntity, "bad pi_b"},
		{loan.Outcome{Kind: loan.KindUserRejected, Err: signer.ErrUserRejected}, http.StatusConflict, ""},
		{loan.Outcome{Kind: loan.KindTransactionFailed, Err: errors.New("x"), Diagnostic: "execution reverted"}, http.StatusBadGateway, "execution reverted"},
		{loan.Outcome{Kind: loan.KindPersistenceFailed, TxHash: tx, Err: store.ErrPersistence, Diagnostic: "store: write failed"}, http.StatusInternalServerError, "store: write failed"},
		{loan.Outcome{Kind: loan.KindDuplicate, Err: errors.New("dup")}, http.StatusConflict, "dup"},
	}
	for _, tc := range cases {
		t.Run(tc.out.Kind.String(), func(t *testing.T) {
			h := New(&fakeSubmitter{out: tc.out}, fakeLister{}, 100000, zerolog.Nop()).Handler()
			w := do(t, h, http.MethodPost, "/v1/loans", `{"amount":"10"}`, asBorrower())
			require.Equal(t, tc.code, w.Code)

			var resp submitResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, tc.out.Kind, resp.Kind)
			require.Equal(t, tc.err, resp.Error)
			if tc.out.OnChain() {
				require.Equal(t, tx.Hex(), resp.TxHash)
			} else {
				require.Empty(t, resp.TxHash)
			}
		})
	}
}

func TestListLoans(t *testing.T) {
	rows := []store.LoanRecord{{BorrowerAddress: borrower, Amount: "10000", RiskScore: 98, Status: store.StatusPending}}
	h := New(&fakeSubmitter{}, fakeLister{rows: rows}, 100000, zerolog.Nop()).Handler()

	w := do(t, h, http.MethodGet, "/v1/loans", "", asBorrower())
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"risk_score":98`)

	w = do(t, h, http.MethodGet, "/v1/loans", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	h = New(&fakeSubmitter{}, fakeLister{err: errors.New("db down")}, 100000, zerolog.Nop()).Handler()
	w = do(t, h, http.MethodGet, "/v1/loans", "", asBorrower())
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPreviewScore(t *testing.T) {
	h := New(&fakeSubmitter{}, fakeLister{}, 100000, zerolog.Nop()).Handler()

	w := do(t, h, http.MethodGet, "/v1/risk?amount=10000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"risk_score":98}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/risk?amount=10000&revenue=2500", "", nil)
	require.JSONEq(t, `{"risk_score":70}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/risk?amount=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// fakeSigner accepts every call with a fixed hash.
type fakeSigner struct{ hash common.Hash }

func (f fakeSigner) Send(_ context.Context, c signer.Call) (common.Hash, error) {
	if _, err := c.ABI.Pack(c.Method, c.Args...); err != nil {
		return common.Hash{}, err
	}
	return f.hash, nil
}

func TestEndToEndWithSQLite(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "loans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	parsed, err := signer.FactoryABI()
	require.NoError(t, err)
	tx := common.HexToHash("0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060")
	orch, err := loan.New(loan.Config{ABI: parsed, RevenueBaseline: 100000}, fakeSigner{hash: tx}, st)
	require.NoError(t, err)

	var logs bytes.Buffer
	h := New(orch, st, 100000, zerolog.New(&logs)).Handler()

	w := do(t, h, http.MethodPost, "/v1/loans", `{"amount":"10000"}`, asBorrower())
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/v1/proofs", artifact, asBorrower())
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodPost, "/v1/loans", `{"amount":"10000.5","purpose":"stock"}`, asBorrower())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, loan.KindSubmitted, resp.Kind)
	require.Equal(t, tx.Hex(), resp.TxHash)
	require.Equal(t, 98, resp.RiskScore)

	rows, err := st.LoansByBorrower(context.Background(), common.HexToAddress(borrower).Hex())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, units.MustAmount("10000.5").String(), rows[0].Amount)

	txs, err := st.TransactionsByHash(context.Background(), tx.Hex())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, store.TxTypeLoanRequest, txs[0].Type)

	require.Contains(t, logs.String(), `"path":"/v1/loans"`)
}
