/*
handlers.go - HTTP API handlers for the sickness benefit engine

PURPOSE:
  Exposes payment.Build via REST. Handles HTTP request/response, JSON
  serialization, income history lookups and audit persistence, and
  delegates every decision to the engine.

ENDPOINTS:
  Cases:
    POST   /api/cases/evaluate           Evaluate a case document
    GET    /api/cases/{id}/audit         Stored audit trail of a case

  Incomes:
    GET    /api/persons/{id}/incomes     Stored income history
    POST   /api/persons/{id}/incomes     Save income entries

  Scenarios:
    GET    /api/scenarios                List demo cases
    POST   /api/scenarios/{id}/evaluate  Evaluate a demo case

  Health:
    GET    /api/health

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: income history and audit trail (nil disables persistence)
  - Factory: JSON to Case conversion
  - BaseAmounts: the G table every evaluation uses

REQUEST FLOW (evaluate):
  1. Parse the case document
  2. Fill incomes from the store when the document has none
  3. Build with an audit collector
  4. Persist the collected records under the case id
  5. Serialize the payment output

ERROR HANDLING:
  - 400: malformed or inconsistent case documents
  - 404: unknown case or scenario
  - 429: evaluation rate limit reached
  - 500: engine contract violations and storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo case documents
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/factory"
	"github.com/warp/sickpay-engine/generic"
	"github.com/warp/sickpay-engine/payment"
	"github.com/warp/sickpay-engine/store/sqlite"
)

const maxCaseBytes = 4 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Factory     *factory.CaseFactory
	BaseAmounts eligibility.BaseAmountTable

	// MirrorAudit also writes audit records to the zap logger.
	MirrorAudit bool

	limiter *rate.Limiter // nil means unlimited
}

// NewHandler creates a handler. store may be nil.
func NewHandler(store *sqlite.Store, f *factory.CaseFactory, baseAmounts eligibility.BaseAmountTable) *Handler {
	return &Handler{
		Store:       store,
		Factory:     f,
		BaseAmounts: baseAmounts,
	}
}

// =============================================================================
// CASE HANDLERS
// =============================================================================

// EvaluateCase runs the engine on the posted case document.
func (h *Handler) EvaluateCase(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCaseBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	c, err := h.Factory.ParseCase(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case document", err)
		return
	}
	h.evaluate(w, r, c)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request, c *factory.Case) {
	ctx := r.Context()
	log := zap.L().With(zap.String("request_id", middleware.GetReqID(ctx)))

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := h.fillIncomes(ctx, c); err != nil {
		log.Error("load income history", zap.String("person_id", c.PersonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load income history", err)
		return
	}

	collector := audit.NewCollector()
	var sink audit.Sink = collector
	if h.MirrorAudit {
		sink = audit.Tee{collector, audit.NewZapSink(log)}
	}

	out, err := payment.Build(c.Input(h.BaseAmounts, sink))
	if err != nil {
		log.Error("evaluate case", zap.String("case_id", c.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Evaluation failed", err)
		return
	}

	records := collector.Records()
	if h.Store != nil {
		if err := h.Store.SaveAuditRecords(ctx, c.ID, records); err != nil {
			log.Error("persist audit records", zap.String("case_id", c.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to persist audit trail", err)
			return
		}
	}

	log.Info("case evaluated",
		zap.String("case_id", c.ID),
		zap.String("state", out.State.String()),
		zap.Int("consumed_days", out.ConsumedDays),
		zap.Int("warnings", len(out.Warnings)),
	)
	writeJSON(w, http.StatusOK, NewEvaluationDTO(c.ID, out, len(records)))
}

// fillIncomes loads the stored history when the document carries none.
func (h *Handler) fillIncomes(ctx context.Context, c *factory.Case) error {
	if h.Store == nil || c.PersonID == "" || len(c.Incomes.Entries()) > 0 {
		return nil
	}
	incomes, err := h.Store.IncomeHistory(ctx, c.PersonID)
	if err != nil {
		return err
	}
	c.Incomes = incomes
	return nil
}

// GetCaseAudit returns the stored audit trail of a case.
func (h *Handler) GetCaseAudit(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Persistence is disabled", nil)
		return
	}
	id := chi.URLParam(r, "id")

	records, err := h.Store.AuditRecords(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load audit trail", err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "Case not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, NewAuditRecordDTOs(records))
}

// =============================================================================
// INCOME HANDLERS
// =============================================================================

// ListIncomes returns the stored income history of a person.
func (h *Handler) ListIncomes(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Persistence is disabled", nil)
		return
	}
	table, err := h.Store.IncomeHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load income history", err)
		return
	}

	out := []IncomeDTO{}
	for _, e := range table.Entries() {
		out = append(out, toIncomeDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveIncomes stores a batch of income entries for a person.
func (h *Handler) SaveIncomes(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Persistence is disabled", nil)
		return
	}
	personID := chi.URLParam(r, "id")

	var req []IncomeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	entries := make([]payment.IncomeEntry, 0, len(req))
	for _, dto := range req {
		e, err := fromIncomeDTO(dto)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid income entry", err)
			return
		}
		entries = append(entries, e)
	}

	for _, e := range entries {
		if err := h.Store.SaveIncome(r.Context(), personID, e); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save income", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]int{"saved": len(entries)})
}

func fromIncomeDTO(dto IncomeDTO) (payment.IncomeEntry, error) {
	if dto.Relationship == "" {
		return payment.IncomeEntry{}, eris.New("relationship is required")
	}
	from, err := generic.ParseDay(dto.From)
	if err != nil {
		return payment.IncomeEntry{}, eris.Wrapf(err, "from %q", dto.From)
	}
	monthly, err := decimal.NewFromString(dto.Monthly)
	if err != nil {
		return payment.IncomeEntry{}, eris.Wrapf(err, "monthly %q", dto.Monthly)
	}
	e := payment.IncomeEntry{Relationship: dto.Relationship, From: from, Monthly: monthly}
	if dto.RefundMonthly != nil {
		refund, err := decimal.NewFromString(*dto.RefundMonthly)
		if err != nil {
			return payment.IncomeEntry{}, eris.Wrapf(err, "refund_monthly %q", *dto.RefundMonthly)
		}
		e.RefundMonthly = &refund
	}
	return e, nil
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "persistence": h.Store != nil}
	if h.Store != nil {
		if _, err := h.Store.CaseExists(r.Context(), "health"); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
