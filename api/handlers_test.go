/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Case evaluation end to end (document in, payment output out)
- Audit trail persistence and lookup
- Income history round trip and its use by evaluation
- Demo scenarios
*/
package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/factory"
	"github.com/warp/sickpay-engine/store/sqlite"
)

func setupTestServer(t *testing.T, withStore bool) (http.Handler, *Handler) {
	t.Helper()
	var store *sqlite.Store
	if withStore {
		var err error
		store, err = sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}

	h := NewHandler(store, factory.NewCaseFactory("continuous_sickness_priority"), eligibility.DefaultBaseAmounts())
	return NewRouter(h, []string{"http://localhost:5173"}), h
}

func do(t *testing.T, srv http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const weekOfSickness = `{
  "id": "case-week",
  "person_id": "p-1",
  "birth_date": "1980-03-03",
  "relationships": [
    {"id": "acme", "sources": [
      {"kind": "sick_note", "seq": 1, "periods": [
        {"from": "2024-06-03", "to": "2024-06-09", "type": "sick", "grade": 80}
      ]}
    ]}
  ],
  "incomes": [
    {"relationship": "acme", "from": "2024-01-01", "monthly": 26000, "refund_monthly": 26000}
  ]
}`

// =============================================================================
// EVALUATE
// =============================================================================

func TestEvaluateCase_PaysEmployerRefund(t *testing.T) {
	// GIVEN: a week at 80% with full refund
	// WHEN:  the document is posted
	// THEN:  five weekdays pay 960 each to the employer
	srv, _ := setupTestServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/cases/evaluate", []byte(weekOfSickness))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	out := decode[EvaluationDTO](t, rec)
	assert.Equal(t, "case-week", out.CaseID)
	assert.Equal(t, "2024-06-03", out.ReferenceDate)
	assert.Equal(t, "4800", out.EmployerTotal)
	assert.Equal(t, "0", out.PersonalTotal)
	assert.Equal(t, 5, out.ConsumedDays)
	assert.Equal(t, 243, out.RemainingDays)
	assert.True(t, out.Unaffected)
	assert.Empty(t, out.Rejections)
	assert.Positive(t, out.AuditRecords)

	require.Len(t, out.Relationships, 1)
	days := out.Relationships[0].Days
	require.Len(t, days, 7)
	monday := days[0]
	assert.Equal(t, "2024-06-03", monday.Date)
	assert.Equal(t, "sick", monday.Kind)
	assert.Equal(t, "payable", monday.Status)
	assert.Equal(t, "80", monday.Grade)
	assert.Equal(t, "1200", monday.Income)
	assert.Equal(t, "960", monday.Employer)
	assert.Equal(t, "0", monday.Personal)
	assert.Equal(t, "sick_weekend", days[5].Kind)
	assert.Empty(t, days[5].Employer)
}

func TestEvaluateCase_RejectsInvalidDocument(t *testing.T) {
	srv, _ := setupTestServer(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"birth_date":`},
		{"no relationships", `{"birth_date": "1980-03-03"}`},
		{"bad period type", `{"birth_date": "1980-03-03", "relationships": [{"id": "a", "sources": [
			{"kind": "sick_note", "seq": 1, "periods": [{"from": "2024-06-03", "to": "2024-06-03", "type": "holiday"}]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/cases/evaluate", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "Invalid case document", resp.Error)
			assert.NotEmpty(t, resp.Details)
		})
	}
}

func TestEvaluateCase_AssignsCaseIDWhenMissing(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	doc := bytes.Replace([]byte(weekOfSickness), []byte(`"id": "case-week",`), nil, 1)

	rec := do(t, srv, http.MethodPost, "/api/cases/evaluate", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[EvaluationDTO](t, rec).CaseID, 36)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestGetCaseAudit_ReturnsStoredRecords(t *testing.T) {
	// GIVEN: an evaluated case
	// WHEN:  its audit trail is requested
	// THEN:  every collected record is returned with the case context
	srv, _ := setupTestServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/cases/evaluate", []byte(weekOfSickness))
	require.Equal(t, http.StatusOK, rec.Code)
	evaluated := decode[EvaluationDTO](t, rec)

	rec = do(t, srv, http.MethodGet, "/api/cases/case-week/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	records := decode[[]AuditRecordDTO](t, rec)
	require.Len(t, records, evaluated.AuditRecords)
	for _, r := range records {
		assert.NotEmpty(t, r.Statute)
		assert.Equal(t, "case-week", r.Context["case_id"])
	}
}

func TestGetCaseAudit_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t, true)
	rec := do(t, srv, http.MethodGet, "/api/cases/nope/audit", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv, _ = setupTestServer(t, false)
	rec = do(t, srv, http.MethodGet, "/api/cases/nope/audit", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// INCOMES
// =============================================================================

func TestIncomes_StoredHistoryFeedsEvaluation(t *testing.T) {
	// GIVEN: incomes saved for p-1 and a case document without incomes
	// WHEN:  the case is evaluated
	// THEN:  the stored history is used
	srv, _ := setupTestServer(t, true)

	refund := "26000"
	body, err := json.Marshal([]IncomeDTO{{Relationship: "acme", From: "2024-01-01", Monthly: "26000", RefundMonthly: &refund}})
	require.NoError(t, err)

	rec := do(t, srv, http.MethodPost, "/api/persons/p-1/incomes", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/persons/p-1/incomes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[[]IncomeDTO](t, rec)
	require.Len(t, stored, 1)
	assert.Equal(t, "2024-01-01", stored[0].From)

	var doc factory.CaseJSON
	require.NoError(t, json.Unmarshal([]byte(weekOfSickness), &doc))
	doc.Incomes = nil
	docBytes, err := json.Marshal(doc)
	require.NoError(t, err)

	rec = do(t, srv, http.MethodPost, "/api/cases/evaluate", docBytes)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[EvaluationDTO](t, rec)
	assert.Equal(t, "4800", out.EmployerTotal)
	assert.Empty(t, out.Warnings)
}

func TestSaveIncomes_RejectsInvalidEntries(t *testing.T) {
	srv, _ := setupTestServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/persons/p-1/incomes",
		[]byte(`[{"relationship": "acme", "from": "2024-01-01", "monthly": "lots"}]`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/persons/p-1/incomes",
		[]byte(`[{"from": "2024-01-01", "monthly": "100"}]`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIOS & HEALTH
// =============================================================================

func TestScenarios_AllEvaluate(t *testing.T) {
	srv, _ := setupTestServer(t, true)

	rec := do(t, srv, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarios))

	for _, s := range list {
		t.Run(s.ID, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/scenarios/"+s.ID+"/evaluate", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestScenarios_Outcomes(t *testing.T) {
	srv, _ := setupTestServer(t, false)

	tests := []struct {
		id       string
		state    string
		employer string
		reason   string
	}{
		{"full-refund", "ActivelySick", "4800", ""},
		{"two-employers-capped", "ActivelySick", "11180", ""},
		{"vacation-in-sickness", "ActivelySick", "0", ""},
		{"pool-exhausted", "Exhausted", "297600", "StandardPoolExhausted"},
		{"too-old", "TooOld", "0", "TooOld"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/scenarios/"+tt.id+"/evaluate", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			out := decode[EvaluationDTO](t, rec)
			assert.Equal(t, tt.state, out.State)
			assert.Equal(t, tt.employer, out.EmployerTotal)
			if tt.reason != "" {
				require.NotEmpty(t, out.Rejections)
				assert.Equal(t, tt.reason, out.Rejections[0].Reason)
			}
		})
	}
}

func TestScenarios_Unknown(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	rec := do(t, srv, http.MethodPost, "/api/scenarios/nope/evaluate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	for _, withStore := range []bool{true, false} {
		srv, _ := setupTestServer(t, withStore)
		rec := do(t, srv, http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[map[string]any](t, rec)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, withStore, body["persistence"])
	}
}

// =============================================================================
// RATE LIMIT
// =============================================================================

func TestRateLimit_RejectsEvaluationsOverBudget(t *testing.T) {
	// GIVEN: a budget of one evaluation with no refill in test time
	// WHEN:  two evaluations arrive back to back
	// THEN:  the second is refused with 429 while reads still pass
	srv, h := setupTestServer(t, false)
	h.SetRateLimit(0.001, 1)

	first := do(t, srv, http.MethodPost, "/api/cases/evaluate", []byte(weekOfSickness))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := do(t, srv, http.MethodPost, "/api/scenarios/full-refund/evaluate", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, "Too many evaluations", decode[ErrorResponse](t, second).Error)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/scenarios", nil).Code)
}

func TestRateLimit_DisabledByZero(t *testing.T) {
	srv, h := setupTestServer(t, false)
	h.SetRateLimit(0.001, 1)
	h.SetRateLimit(0, 0)

	for i := 0; i < 3; i++ {
		rec := do(t, srv, http.MethodPost, "/api/scenarios/full-refund/evaluate", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
