/*
scenarios.go - Demo case documents for testing and demonstrations

PURPOSE:
	Provides pre-built case documents that exercise specific rules of the
	engine. Each scenario is evaluated exactly like a posted document, so the
	audit trail is stored under the scenario's case id.

AVAILABLE SCENARIOS:

	full-refund:         One employer, 80% sick, employer refunded in full
	two-employers-capped: Two employers above 6G, split by largest remainder
	vacation-in-sickness: Sick note and vacation report on the same day
	pool-exhausted:      A year of sickness runs out the 248-day pool
	too-old:             Sickness after the 70th birthday

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/two-employers-capped/evaluate

ADDING NEW SCENARIOS:
 1. Add a scenario with ID, name, description and its CaseJSON
 2. Nothing else: EvaluateScenario looks it up by id

SEE ALSO:
  - handlers.go: evaluate shares the flow with EvaluateCase
  - factory/case.go: CaseJSON definition
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	doc factory.CaseJSON
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func sickNote(seq int, from, to string, grade int64) factory.SourceJSON {
	return factory.SourceJSON{Kind: "sick_note", Seq: seq, Periods: []factory.PeriodJSON{
		{From: from, To: to, Type: "sick", Grade: dec(grade)},
	}}
}

func income(rel, from string, monthly int64, refund bool) factory.IncomeJSON {
	in := factory.IncomeJSON{Relationship: rel, From: from, Monthly: decimal.NewFromInt(monthly)}
	if refund {
		in.RefundMonthly = dec(monthly)
	}
	return in
}

var scenarios = []scenario{
	{
		ScenarioDTO{ID: "full-refund", Name: "Full Refund",
			Description: "One employer, 80% sick for a week, refund of the full salary"},
		factory.CaseJSON{
			ID: "scenario-full-refund", PersonID: "demo-1", BirthDate: "1980-03-03",
			Relationships: []factory.RelationshipJSON{
				{ID: "acme", Sources: []factory.SourceJSON{sickNote(1, "2024-06-03", "2024-06-09", 80)}},
			},
			Incomes: []factory.IncomeJSON{income("acme", "2024-01-01", 26000, true)},
		},
	},
	{
		ScenarioDTO{ID: "two-employers-capped", Name: "Two Employers Capped",
			Description: "Incomes 21000 and 35000 a month exceed 6G; the daily cap is split by largest remainder"},
		factory.CaseJSON{
			ID: "scenario-two-employers-capped", PersonID: "demo-2", BirthDate: "1980-03-03",
			Relationships: []factory.RelationshipJSON{
				{ID: "a", Sources: []factory.SourceJSON{sickNote(1, "2018-06-04", "2018-06-08", 100)}},
				{ID: "b", Sources: []factory.SourceJSON{sickNote(1, "2018-06-04", "2018-06-08", 100)}},
			},
			Incomes: []factory.IncomeJSON{
				income("a", "2018-01-01", 21000, true),
				income("b", "2018-01-01", 35000, true),
			},
		},
	},
	{
		ScenarioDTO{ID: "vacation-in-sickness", Name: "Vacation During Sickness",
			Description: "The employer reports vacation on a sick day; continuous sickness priority keeps it sick"},
		factory.CaseJSON{
			ID: "scenario-vacation-in-sickness", PersonID: "demo-3", BirthDate: "1980-03-03",
			Relationships: []factory.RelationshipJSON{
				{ID: "acme", TieBreak: "continuous_sickness_priority", Sources: []factory.SourceJSON{
					sickNote(1, "2024-06-03", "2024-06-16", 100),
					{Kind: "employer_report", Seq: 2, Periods: []factory.PeriodJSON{
						{From: "2024-06-10", To: "2024-06-10", Type: "vacation"},
					}},
				}},
			},
			Incomes: []factory.IncomeJSON{income("acme", "2024-01-01", 26000, false)},
		},
	},
	{
		ScenarioDTO{ID: "pool-exhausted", Name: "Pool Exhausted",
			Description: "Sick all of 2024; the 248th payable day is December 11"},
		factory.CaseJSON{
			ID: "scenario-pool-exhausted", PersonID: "demo-4", BirthDate: "1980-03-03",
			Relationships: []factory.RelationshipJSON{
				{ID: "acme", Sources: []factory.SourceJSON{sickNote(1, "2024-01-01", "2024-12-13", 100)}},
			},
			Incomes: []factory.IncomeJSON{income("acme", "2023-01-01", 26000, true)},
		},
	},
	{
		ScenarioDTO{ID: "too-old", Name: "Too Old",
			Description: "Sickness starting after the 70th birthday is rejected"},
		factory.CaseJSON{
			ID: "scenario-too-old", PersonID: "demo-5", BirthDate: "1954-06-01",
			Relationships: []factory.RelationshipJSON{
				{ID: "acme", Sources: []factory.SourceJSON{sickNote(1, "2024-06-03", "2024-06-07", 100)}},
			},
			Incomes: []factory.IncomeJSON{income("acme", "2024-01-01", 26000, false)},
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo cases.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// EvaluateScenario evaluates a demo case as if it had been posted.
func (h *Handler) EvaluateScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := findScenario(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Scenario not found", nil)
		return
	}

	c, err := h.Factory.FromJSON(s.doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Invalid scenario", err)
		return
	}
	h.evaluate(w, r, c)
}
