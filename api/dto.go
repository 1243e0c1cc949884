/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Dates are ISO strings
  and money is a decimal string so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Evaluation:
    EvaluationDTO, RelationshipDTO, PaymentDayDTO, RejectionDTO

  Audit:
    AuditRecordDTO

  Income:
    IncomeDTO (request and response)

  Scenarios:
    ScenarioDTO

SEE ALSO:
  - handlers.go: Uses these types
  - factory/case.go: CaseJSON is the evaluate request body
*/
package api

import (
	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/generic"
	"github.com/warp/sickpay-engine/payment"
)

// =============================================================================
// EVALUATION
// =============================================================================

type EvaluationDTO struct {
	CaseID         string            `json:"case_id"`
	From           string            `json:"from,omitempty"`
	To             string            `json:"to,omitempty"`
	ReferenceDate  string            `json:"reference_date,omitempty"`
	BaseAmount     string            `json:"base_amount"`
	DailyCap       string            `json:"daily_cap"`
	State          string            `json:"state"`
	ExhaustionDate string            `json:"exhaustion_date,omitempty"`
	ConsumedDays   int               `json:"consumed_days"`
	RemainingDays  int               `json:"remaining_days"`
	Unaffected     bool              `json:"unaffected"`
	EmployerTotal  string            `json:"employer_total"`
	PersonalTotal  string            `json:"personal_total"`
	Rejections     []RejectionDTO    `json:"rejections"`
	Relationships  []RelationshipDTO `json:"relationships"`
	Warnings       []string          `json:"warnings"`
	AuditRecords   int               `json:"audit_records"`
}

type RejectionDTO struct {
	Reason string `json:"reason"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type RelationshipDTO struct {
	ID            string          `json:"id"`
	EmployerTotal string          `json:"employer_total"`
	PersonalTotal string          `json:"personal_total"`
	Days          []PaymentDayDTO `json:"days"`
}

// PaymentDayDTO omits the money fields on days without an economy.
type PaymentDayDTO struct {
	Date       string `json:"date"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Grade      string `json:"grade,omitempty"`
	TotalGrade string `json:"total_grade,omitempty"`
	Income     string `json:"daily_income,omitempty"`
	CapApplied bool   `json:"cap_applied,omitempty"`
	Employer   string `json:"employer_payout,omitempty"`
	Personal   string `json:"personal_payout,omitempty"`
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditRecordDTO struct {
	Statute string            `json:"statute"`
	Input   map[string]any    `json:"input"`
	Output  map[string]any    `json:"output"`
	Context map[string]string `json:"context,omitempty"`
}

// =============================================================================
// INCOME
// =============================================================================

// IncomeDTO mirrors factory.IncomeJSON with the amounts as strings.
type IncomeDTO struct {
	Relationship  string  `json:"relationship"`
	From          string  `json:"from"`
	Monthly       string  `json:"monthly"`
	RefundMonthly *string `json:"refund_monthly,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

func day(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

// NewEvaluationDTO renders a payment output for clients.
func NewEvaluationDTO(caseID string, out *payment.Output, auditRecords int) EvaluationDTO {
	dto := EvaluationDTO{
		CaseID:         caseID,
		From:           day(out.Period.Start),
		To:             day(out.Period.End),
		ReferenceDate:  day(out.ReferenceDate),
		BaseAmount:     out.BaseAmount.String(),
		DailyCap:       out.DailyCap.String(),
		State:          out.State.String(),
		ExhaustionDate: day(out.ExhaustionDate),
		ConsumedDays:   out.ConsumedDays,
		RemainingDays:  out.RemainingDays,
		Unaffected:     out.Unaffected,
		EmployerTotal:  out.EmployerTotal.String(),
		PersonalTotal:  out.PersonalTotal.String(),
		Rejections:     []RejectionDTO{},
		Relationships:  make([]RelationshipDTO, 0, len(out.Relationships)),
		Warnings:       []string{},
		AuditRecords:   auditRecords,
	}
	dto.Warnings = append(dto.Warnings, out.Warnings...)

	for _, r := range out.Rejections {
		dto.Rejections = append(dto.Rejections, RejectionDTO{
			Reason: string(r.Reason),
			From:   r.Period.Start.String(),
			To:     r.Period.End.String(),
		})
	}
	for _, rel := range out.Relationships {
		dto.Relationships = append(dto.Relationships, toRelationshipDTO(rel))
	}
	return dto
}

func toRelationshipDTO(rel payment.RelationshipOutput) RelationshipDTO {
	dto := RelationshipDTO{
		ID:            rel.ID,
		EmployerTotal: rel.EmployerTotal.String(),
		PersonalTotal: rel.PersonalTotal.String(),
		Days:          make([]PaymentDayDTO, 0, len(rel.Days)),
	}
	for _, pd := range rel.Days {
		d := PaymentDayDTO{
			Date:   pd.Date.String(),
			Kind:   pd.Kind.String(),
			Status: pd.Status.String(),
			Reason: string(pd.Reason),
		}
		if pd.Kind.IsGraded() {
			d.Grade = pd.Economy.Grade.String()
			d.TotalGrade = pd.Economy.TotalGrade.String()
		}
		if pd.Economy.Phase.IsPaid() {
			d.Income = pd.Economy.DailyIncome.String()
			d.CapApplied = pd.Economy.CapApplied
			d.Employer = pd.Economy.EmployerPayout.String()
			d.Personal = pd.Economy.PersonalPayout.String()
		}
		dto.Days = append(dto.Days, d)
	}
	return dto
}

func NewAuditRecordDTOs(records []audit.Record) []AuditRecordDTO {
	out := make([]AuditRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, AuditRecordDTO{
			Statute: string(r.Statute),
			Input:   r.Input,
			Output:  r.Output,
			Context: r.Context,
		})
	}
	return out
}

func toIncomeDTO(e payment.IncomeEntry) IncomeDTO {
	dto := IncomeDTO{
		Relationship: e.Relationship,
		From:         e.From.String(),
		Monthly:      e.Monthly.String(),
	}
	if e.RefundMonthly != nil {
		s := e.RefundMonthly.String()
		dto.RefundMonthly = &s
	}
	return dto
}
