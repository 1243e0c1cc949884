/*
Package payment is the composition root of the benefit engine.

PURPOSE:
  Build takes merged per-relationship timelines, an income history and a date
  of birth, and produces the payment timeline: every date of every
  relationship tagged Payable, Rejected or Neutral, with the money split for
  payable days and the entitlement outcome for the whole evaluation.

PIPELINE:
  1. Cut every timeline at the evaluation end and validate it. Violations
     become warnings; the affected days stay Neutral.
  2. Reference date = earliest first day of the current sickness spell
     across relationships. It selects the base amount and the daily cap.
  3. Age 70 and minimum income are checked at the reference date. A failed
     check rejects every sick weekday up front.
  4. Each date is classified across relationships and walked through the
     entitlement machine.
  5. Payable dates attach income and settle all relationships sick that day
     under the shared cap. Rejected sick days are locked and pay zero.

CLASSIFICATION (per date, across relationships):
  any sick weekday           -> payable (or rejected, see step 3)
  foreign residency          -> rejected (ForeignResidency on sick weekdays)
  weekend or employer paid   -> sickness that does not pay
  vacation or leave          -> leave
  anything else              -> work or off

SEE ALSO:
  - entitlement/machine.go: pool consumption and renewal
  - allocation/settle.go: the shared-cap settlement
  - income.go: IncomeHistory and the in-memory table
*/
package payment

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/allocation"
	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/entitlement"
	"github.com/warp/sickpay-engine/generic"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Relationship is one employment relationship and its merged timeline.
type Relationship struct {
	ID       string
	Timeline timeline.Timeline
}

type Input struct {
	// Relationships are processed in slice order; ties in settlement
	// follow it.
	Relationships []Relationship
	Incomes       IncomeHistory
	BirthDate     generic.TimePoint

	// EvaluationEnd cuts every timeline. Zero means the end of the latest
	// timeline.
	EvaluationEnd generic.TimePoint

	// BaseAmounts defaults to eligibility.DefaultBaseAmounts when empty.
	BaseAmounts eligibility.BaseAmountTable

	Audit        audit.Sink
	AuditContext map[string]string
}

type Status int

const (
	StatusNeutral Status = iota
	StatusPayable
	StatusRejected
)

var statusNames = [...]string{"neutral", "payable", "rejected"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// PaymentDay is one date of one relationship's payment timeline.
type PaymentDay struct {
	Date    generic.TimePoint
	Kind    timeline.DayKind
	Status  Status
	Reason  entitlement.Reason
	Economy allocation.EconomicState
}

type RelationshipOutput struct {
	ID            string
	Days          []PaymentDay
	EmployerTotal generic.Money
	PersonalTotal generic.Money
}

type Output struct {
	Relationships []RelationshipOutput
	Period        generic.Period
	ReferenceDate generic.TimePoint
	BaseAmount    generic.Money
	DailyCap      generic.Money

	State          entitlement.State
	ExhaustionDate generic.TimePoint
	ConsumedDays   int
	RemainingDays  int
	Rejections     []entitlement.RejectedRange
	Unaffected     bool

	EmployerTotal generic.Money
	PersonalTotal generic.Money
	Warnings      []string
}

// =============================================================================
// BUILD
// =============================================================================

// Build runs the whole pipeline. Errors are contract violations inside the
// engine; every business outcome is part of the Output.
func Build(in Input) (*Output, error) {
	b := &builder{
		in:     in,
		sink:   audit.OrDiscard(in.Audit),
		tables: in.BaseAmounts,
		out: &Output{
			EmployerTotal: decimal.Zero,
			PersonalTotal: decimal.Zero,
			Unaffected:    true,
		},
	}
	if b.tables.Len() == 0 {
		b.tables = eligibility.DefaultBaseAmounts()
	}
	if b.in.Incomes == nil {
		b.in.Incomes = NewIncomeTable()
	}

	if !b.cut() {
		return b.out, nil
	}
	b.reference()
	b.preReject()
	if err := b.walk(); err != nil {
		return nil, err
	}
	if err := b.pay(); err != nil {
		return nil, err
	}
	return b.out, nil
}

type builder struct {
	in     Input
	sink   audit.Sink
	tables eligibility.BaseAmountTable
	out    *Output

	relationships []Relationship
	profile       eligibility.AgeProfile
	dailyCap      generic.Money
	hasSickness   bool

	preRejectReason entitlement.Reason
	kinds           []entitlement.Day
	rejected        map[generic.TimePoint]entitlement.Reason

	capReported bool // capApplied holds the last reported cap decision
	capApplied  bool
}

// cut limits timelines to the evaluation period and collects violations.
// It reports false when there is nothing to evaluate.
func (b *builder) cut() bool {
	var span generic.Period
	found := false
	for _, r := range b.in.Relationships {
		if r.Timeline.IsEmpty() {
			continue
		}
		if !found {
			span, found = r.Timeline.Period(), true
			continue
		}
		span = span.Union(r.Timeline.Period())
	}
	if !found {
		b.warn("no relationship has any days")
		return false
	}
	if !b.in.EvaluationEnd.IsZero() {
		if b.in.EvaluationEnd.Before(span.Start) {
			b.warn("evaluation end %s is before the first day %s", b.in.EvaluationEnd, span.Start)
			return false
		}
		span.End = generic.MinDay(span.End, b.in.EvaluationEnd)
	}
	b.out.Period = span

	for _, r := range b.in.Relationships {
		cut := Relationship{ID: r.ID, Timeline: r.Timeline.Subset(span)}
		for _, v := range cut.Timeline.Validate() {
			b.warn("relationship %s: %s", r.ID, v)
		}
		b.relationships = append(b.relationships, cut)
	}
	return true
}

// reference picks the eligibility reference date and the amounts tied to it.
func (b *builder) reference() {
	ref := b.out.Period.Start
	for _, r := range b.relationships {
		first, ok := r.Timeline.FirstDayOfSpell()
		if !ok {
			continue
		}
		if !b.hasSickness || first.Before(ref) {
			ref = first
		}
		b.hasSickness = true
	}

	b.out.ReferenceDate = ref
	b.out.BaseAmount = b.tables.At(ref)
	b.dailyCap = b.tables.DailyCap(ref)
	b.out.DailyCap = b.dailyCap
	b.profile = eligibility.NewAgeProfile(b.in.BirthDate, b.sink).WithContext(b.in.AuditContext)
}

// preReject checks the person-level conditions at the reference date.
func (b *builder) preReject() {
	if !b.hasSickness {
		return
	}
	ref := b.out.ReferenceDate
	if b.profile.HasLostEntitlementAtAge70(ref) {
		b.preRejectReason = entitlement.TooOld
		return
	}

	annual := decimal.Zero
	for _, r := range b.relationships {
		if income, ok := b.in.Incomes.IncomeAt(r.ID, ref); ok {
			annual = annual.Add(generic.AnnualFromDaily(income.Daily))
		}
	}
	if !b.profile.MeetsMinimumIncome(ref, annual, b.out.BaseAmount) {
		b.preRejectReason = entitlement.MinimumIncomeNotMet
	}
}

// walk classifies every date and runs the entitlement machine.
func (b *builder) walk() error {
	b.rejected = make(map[generic.TimePoint]entitlement.Reason)
	var pre []entitlement.Rejection

	for _, date := range b.out.Period.Days() {
		kind, reason := b.classify(date)
		if reason != entitlement.ReasonNone {
			pre = append(pre, entitlement.Rejection{Date: date, Reason: reason})
			b.rejected[date] = reason
		}
		b.kinds = append(b.kinds, entitlement.Day{Date: date, Kind: kind})
	}

	m := entitlement.NewMachine(b.profile, b.sink).WithAuditContext(b.in.AuditContext)
	if err := m.Walk(b.kinds); err != nil {
		return fmt.Errorf("entitlement walk: %w", err)
	}
	res := m.Evaluate(b.out.Period)

	all := pre
	for _, r := range m.Rejections() {
		if b.out.Period.Contains(r.Date) {
			all = append(all, r)
			b.rejected[r.Date] = r.Reason
		}
	}
	sortRejections(all)

	b.out.State = res.State
	b.out.ExhaustionDate = res.ExhaustionDate
	b.out.ConsumedDays = res.ConsumedDays
	b.out.RemainingDays = res.RemainingDays
	b.out.Rejections = entitlement.GroupRejections(all)
	b.out.Unaffected = len(all) == 0
	return nil
}

func (b *builder) classify(date generic.TimePoint) (entitlement.DayKind, entitlement.Reason) {
	var sick, nonPayable, foreign, leave bool
	for _, r := range b.relationships {
		day, ok := r.Timeline.At(date)
		if !ok {
			continue
		}
		switch day.Kind {
		case timeline.KindSick:
			sick = true
		case timeline.KindSickWeekend, timeline.KindEmployerPaid, timeline.KindEmployerPaidWeekend:
			nonPayable = true
		case timeline.KindForeignResidency:
			foreign = true
		case timeline.KindVacation, timeline.KindLeave:
			leave = true
		}
	}

	switch {
	case sick && b.preRejectReason != entitlement.ReasonNone:
		return entitlement.KindRejected, b.preRejectReason
	case sick && foreign:
		return entitlement.KindRejected, entitlement.ForeignResidency
	case sick:
		return entitlement.KindPayable, entitlement.ReasonNone
	case foreign:
		return entitlement.KindRejected, entitlement.ReasonNone
	case nonPayable:
		return entitlement.KindSicknessNonPayable, entitlement.ReasonNone
	case leave:
		return entitlement.KindLeave, entitlement.ReasonNone
	}
	return entitlement.KindWorkOrOff, entitlement.ReasonNone
}

// pay builds the per-relationship output days and settles payable dates.
func (b *builder) pay() error {
	outs := make([]RelationshipOutput, len(b.relationships))
	for i, r := range b.relationships {
		outs[i] = RelationshipOutput{ID: r.ID, EmployerTotal: decimal.Zero, PersonalTotal: decimal.Zero}
	}

	for _, date := range b.out.Period.Days() {
		var (
			payable []int
			states  []allocation.EconomicState
		)
		reason, isRejected := entitlement.ReasonNone, false
		if !b.out.Unaffected {
			reason, isRejected = b.rejected[date]
		}

		for i, r := range b.relationships {
			day, ok := r.Timeline.At(date)
			if !ok {
				day = timeline.ImplicitGapAt(date)
			}
			pd := PaymentDay{Date: date, Kind: day.Kind, Status: StatusNeutral, Economy: day.Economy}

			if day.Kind == timeline.KindSick {
				state, err := day.Economy.AttachIncome(b.incomeAt(r.ID, date), b.dailyCap)
				if err != nil {
					return fmt.Errorf("attach income %s/%s: %w", r.ID, date, err)
				}
				if isRejected {
					if state, err = lockAndPay(state); err != nil {
						return fmt.Errorf("reject %s/%s: %w", r.ID, date, err)
					}
					pd.Status, pd.Reason = StatusRejected, reason
				} else {
					payable = append(payable, i)
					states = append(states, state)
					pd.Status = StatusPayable
				}
				pd.Economy = state
			} else if isRejected && day.Kind.IsGraded() {
				pd.Status, pd.Reason = StatusRejected, reason
			}
			outs[i].Days = append(outs[i].Days, pd)
		}

		if len(payable) == 0 {
			continue
		}
		settled, err := allocation.Settle(states, b.dailyCap)
		if err != nil {
			return fmt.Errorf("settle %s: %w", date, err)
		}
		if !b.capReported || b.capApplied != settled.CapApplied {
			b.reportCap(date, states, settled)
		}
		for k, i := range payable {
			state := settled.States[k]
			last := len(outs[i].Days) - 1
			outs[i].Days[last].Economy = state
			outs[i].EmployerTotal = outs[i].EmployerTotal.Add(state.EmployerPayout)
			outs[i].PersonalTotal = outs[i].PersonalTotal.Add(state.PersonalPayout)
		}
		b.out.EmployerTotal = b.out.EmployerTotal.Add(settled.EmployerTotal)
		b.out.PersonalTotal = b.out.PersonalTotal.Add(settled.PersonalTotal)
	}

	b.out.Relationships = outs
	return nil
}

// reportCap records the 6G decision on the first settled day and on every
// day where it flips.
func (b *builder) reportCap(date generic.TimePoint, states []allocation.EconomicState, s allocation.Settlement) {
	income := decimal.Zero
	for _, st := range states {
		income = income.Add(st.DailyIncome)
	}
	b.capReported, b.capApplied = true, s.CapApplied
	b.sink.Record(audit.Record{
		Statute: audit.StatuteBenefitCap,
		Input: map[string]any{
			"date":          date.String(),
			"daily_income":  income.String(),
			"daily_cap":     b.dailyCap.String(),
			"relationships": len(states),
		},
		Output:  map[string]any{"cap_applied": s.CapApplied, "pool": s.Pool.String()},
		Context: b.in.AuditContext,
	})
}

func sortRejections(r []entitlement.Rejection) {
	sort.SliceStable(r, func(i, j int) bool { return r[i].Date.Before(r[j].Date) })
}

func lockAndPay(s allocation.EconomicState) (allocation.EconomicState, error) {
	locked, err := s.Lock()
	if err != nil {
		return s, err
	}
	return locked.Pay()
}

// incomeAt treats a missing income as zero and warns once per relationship
// and date.
func (b *builder) incomeAt(relationship string, date generic.TimePoint) allocation.Income {
	income, ok := b.in.Incomes.IncomeAt(relationship, date)
	if !ok {
		b.warn("relationship %s: no income on %s, paying zero", relationship, date)
		return allocation.Income{Daily: decimal.Zero}
	}
	return income
}

func (b *builder) warn(format string, args ...any) {
	b.out.Warnings = append(b.out.Warnings, fmt.Sprintf(format, args...))
}
