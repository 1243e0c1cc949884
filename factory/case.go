/*
Package factory converts case documents into engine inputs.

PURPOSE:
  Upstream systems describe a sickness case as a JSON document: the person,
  each employment relationship with the sources that reported days for it,
  and the income history. The factory turns that document into merged
  timelines and an income table that payment.Build can evaluate.

JSON SCHEMA:
  {
    "id": "case-2024-001",
    "person_id": "p-42",
    "birth_date": "1980-03-03",
    "evaluation_end": "2024-06-30",
    "relationships": [
      {
        "id": "acme",
        "tie_break": "continuous_sickness_priority",
        "sources": [
          {
            "kind": "sick_note",
            "seq": 1,
            "periods": [
              {"from": "2024-06-03", "to": "2024-06-16", "type": "sick", "grade": 80}
            ]
          },
          {
            "kind": "employer_report",
            "seq": 2,
            "periods": [
              {"from": "2024-06-10", "to": "2024-06-10", "type": "vacation"}
            ]
          }
        ]
      }
    ],
    "incomes": [
      {"relationship": "acme", "from": "2024-01-01", "monthly": 26000, "refund_monthly": 26000}
    ]
  }

MERGING:
  Periods inside one source are merged in document order, later periods
  winning. Sources are merged in ascending seq with the relationship's
  tie_break, or the factory default when it is empty.

PERIOD TYPES:
  sick, employer_paid, work, vacation, leave, foreign_residency,
  undetermined, unknown. Graded types default to grade 100.

SEE ALSO:
  - timeline/tiebreak.go: tie-break names
  - baseamounts.go: YAML base amount table
  - payment/builder.go: consumes Case.Input
*/
package factory

import (
	"sort"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/generic"
	"github.com/warp/sickpay-engine/payment"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CaseJSON is the JSON representation of a case.
type CaseJSON struct {
	ID            string             `json:"id,omitempty"`
	PersonID      string             `json:"person_id,omitempty"`
	BirthDate     string             `json:"birth_date"`
	EvaluationEnd string             `json:"evaluation_end,omitempty"`
	Relationships []RelationshipJSON `json:"relationships"`
	Incomes       []IncomeJSON       `json:"incomes,omitempty"`
}

type RelationshipJSON struct {
	ID       string       `json:"id"`
	TieBreak string       `json:"tie_break,omitempty"`
	Sources  []SourceJSON `json:"sources"`
}

type SourceJSON struct {
	Kind    string       `json:"kind"`
	Seq     int          `json:"seq"`
	Periods []PeriodJSON `json:"periods"`
}

type PeriodJSON struct {
	From  string           `json:"from"`
	To    string           `json:"to"`
	Type  string           `json:"type"`
	Grade *decimal.Decimal `json:"grade,omitempty"`
}

type IncomeJSON struct {
	Relationship  string           `json:"relationship"`
	From          string           `json:"from"`
	Monthly       decimal.Decimal  `json:"monthly"`
	RefundMonthly *decimal.Decimal `json:"refund_monthly,omitempty"`
}

// =============================================================================
// CASE
// =============================================================================

// Case is a parsed case document.
type Case struct {
	ID            string
	PersonID      string
	BirthDate     generic.TimePoint
	EvaluationEnd generic.TimePoint
	Relationships []payment.Relationship
	Incomes       *payment.IncomeTable
}

// Input assembles the payment input. Audit records carry the case and
// person ids.
func (c *Case) Input(baseAmounts eligibility.BaseAmountTable, sink audit.Sink) payment.Input {
	return payment.Input{
		Relationships: c.Relationships,
		Incomes:       c.Incomes,
		BirthDate:     c.BirthDate,
		EvaluationEnd: c.EvaluationEnd,
		BaseAmounts:   baseAmounts,
		Audit:         sink,
		AuditContext:  map[string]string{"case_id": c.ID, "person_id": c.PersonID},
	}
}

// =============================================================================
// CASE FACTORY
// =============================================================================

// CaseFactory converts JSON case documents to engine inputs.
type CaseFactory struct {
	// DefaultTieBreak applies to relationships without a tie_break.
	DefaultTieBreak string
}

func NewCaseFactory(defaultTieBreak string) *CaseFactory {
	return &CaseFactory{DefaultTieBreak: defaultTieBreak}
}

// ParseCase parses a JSON document into a Case.
func (f *CaseFactory) ParseCase(data []byte) (*Case, error) {
	var cj CaseJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, eris.Wrap(err, "factory: parse case JSON")
	}
	return f.FromJSON(cj)
}

// FromJSON converts CaseJSON to a Case.
func (f *CaseFactory) FromJSON(cj CaseJSON) (*Case, error) {
	birth, err := generic.ParseDay(cj.BirthDate)
	if err != nil {
		return nil, eris.Wrapf(err, "factory: birth_date %q", cj.BirthDate)
	}
	c := &Case{ID: cj.ID, PersonID: cj.PersonID, BirthDate: birth, Incomes: payment.NewIncomeTable()}

	if cj.EvaluationEnd != "" {
		if c.EvaluationEnd, err = generic.ParseDay(cj.EvaluationEnd); err != nil {
			return nil, eris.Wrapf(err, "factory: evaluation_end %q", cj.EvaluationEnd)
		}
	}
	if len(cj.Relationships) == 0 {
		return nil, eris.New("factory: case has no relationships")
	}

	seen := make(map[string]bool)
	for _, rj := range cj.Relationships {
		if rj.ID == "" {
			return nil, eris.New("factory: relationship without id")
		}
		if seen[rj.ID] {
			return nil, eris.Errorf("factory: duplicate relationship %q", rj.ID)
		}
		seen[rj.ID] = true

		tl, err := f.relationshipTimeline(rj)
		if err != nil {
			return nil, eris.Wrapf(err, "factory: relationship %q", rj.ID)
		}
		c.Relationships = append(c.Relationships, payment.Relationship{ID: rj.ID, Timeline: tl})
	}

	for _, ij := range cj.Incomes {
		entry, err := parseIncome(ij)
		if err != nil {
			return nil, err
		}
		c.Incomes.Add(entry)
	}
	return c, nil
}

func (f *CaseFactory) relationshipTimeline(rj RelationshipJSON) (timeline.Timeline, error) {
	name := rj.TieBreak
	if name == "" {
		name = f.DefaultTieBreak
	}
	tb, err := timeline.TieBreakByName(name)
	if err != nil {
		return timeline.Empty(), eris.Wrap(err, "tie_break")
	}

	sources := make([]SourceJSON, len(rj.Sources))
	copy(sources, rj.Sources)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Seq < sources[j].Seq })

	merged := timeline.Empty()
	for _, sj := range sources {
		st, err := sourceTimeline(sj)
		if err != nil {
			return timeline.Empty(), eris.Wrapf(err, "source %s#%d", sj.Kind, sj.Seq)
		}
		if merged, err = merged.Merge(st, tb); err != nil {
			return timeline.Empty(), eris.Wrapf(err, "merge source %s#%d", sj.Kind, sj.Seq)
		}
	}
	return merged, nil
}

func sourceTimeline(sj SourceJSON) (timeline.Timeline, error) {
	src := timeline.Source{Kind: timeline.SourceKind(sj.Kind), Seq: sj.Seq}
	out := timeline.Empty()
	for _, pj := range sj.Periods {
		pt, err := periodTimeline(pj, src)
		if err != nil {
			return timeline.Empty(), err
		}
		if out, err = out.Merge(pt, timeline.PreferLatter); err != nil {
			return timeline.Empty(), err
		}
	}
	return out, nil
}

func periodTimeline(pj PeriodJSON, src timeline.Source) (timeline.Timeline, error) {
	from, err := generic.ParseDay(pj.From)
	if err != nil {
		return timeline.Empty(), eris.Wrapf(err, "period from %q", pj.From)
	}
	to, err := generic.ParseDay(pj.To)
	if err != nil {
		return timeline.Empty(), eris.Wrapf(err, "period to %q", pj.To)
	}
	p, err := generic.NewPeriod(from, to)
	if err != nil {
		return timeline.Empty(), eris.Wrapf(err, "period %s..%s", pj.From, pj.To)
	}

	grade := generic.Hundred
	if pj.Grade != nil {
		grade = *pj.Grade
		if grade.IsNegative() || grade.GreaterThan(generic.Hundred) {
			return timeline.Empty(), eris.Errorf("grade %s outside 0..100", grade)
		}
	}

	switch pj.Type {
	case "sick":
		return timeline.Sick(p, grade, src), nil
	case "employer_paid":
		return timeline.EmployerPaid(p, grade, src), nil
	case "work":
		return timeline.Work(p, src), nil
	case "vacation":
		return timeline.Vacation(p, src), nil
	case "leave":
		return timeline.Leave(p, src), nil
	case "foreign_residency":
		return timeline.Foreign(p, src), nil
	case "undetermined":
		return timeline.Undetermined(p, src), nil
	case "unknown":
		return timeline.Unknown(p, src), nil
	}
	return timeline.Empty(), eris.Errorf("unknown period type %q", pj.Type)
}

func parseIncome(ij IncomeJSON) (payment.IncomeEntry, error) {
	from, err := generic.ParseDay(ij.From)
	if err != nil {
		return payment.IncomeEntry{}, eris.Wrapf(err, "factory: income from %q", ij.From)
	}
	if ij.Relationship == "" {
		return payment.IncomeEntry{}, eris.New("factory: income without relationship")
	}
	return payment.IncomeEntry{
		Relationship:  ij.Relationship,
		From:          from,
		Monthly:       ij.Monthly,
		RefundMonthly: ij.RefundMonthly,
	}, nil
}
