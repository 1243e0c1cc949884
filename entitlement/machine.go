package entitlement

import (
	"sort"

	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// MACHINE
// =============================================================================

// Rejection is one date the machine refused to pay.
type Rejection struct {
	Date   generic.TimePoint
	Reason Reason
}

// Machine walks classified days for one person. It is owned by a single
// evaluation and is not safe for concurrent use.
type Machine struct {
	profile eligibility.AgeProfile // reports to the machine's sink and labels
	sink    audit.Sink
	labels  map[string]string

	ctx        Context
	snapshots  map[generic.TimePoint]Context
	order      []generic.TimePoint // snapshot keys, ascending
	rejections []Rejection         // ascending by date
}

// NewMachine starts in Initial with nothing consumed. sink may be nil.
func NewMachine(profile eligibility.AgeProfile, sink audit.Sink) *Machine {
	return &Machine{
		profile:   profile.WithSink(sink).WithContext(nil),
		sink:      audit.OrDiscard(sink),
		snapshots: make(map[generic.TimePoint]Context),
	}
}

// WithAuditContext attaches labels (case id, person) to every audit record.
func (m *Machine) WithAuditContext(labels map[string]string) *Machine {
	m.labels = labels
	m.profile = m.profile.WithContext(labels)
	return m
}

// Context returns the counters after the last walked day.
func (m *Machine) Context() Context { return m.ctx.clone() }

// SnapshotAt returns the counters exactly as they were after date.
func (m *Machine) SnapshotAt(date generic.TimePoint) (Context, bool) {
	c, ok := m.snapshots[date]
	if !ok {
		return Context{}, false
	}
	return c.clone(), true
}

// Rejections returns every rejected date walked so far.
func (m *Machine) Rejections() []Rejection {
	out := make([]Rejection, len(m.rejections))
	copy(out, m.rejections)
	return out
}

// =============================================================================
// WALK
// =============================================================================

// Walk advances the machine through days, which must be strictly increasing.
//
// Days after the last walked date continue the evaluation; dates missing in
// between are walked as WorkOrOff. When days start on or before the last
// walked date, the machine rewinds to the latest snapshot before days[0] and
// re-walks from there, discarding everything later. A re-walk must therefore
// supply every day from the first changed date onwards.
func (m *Machine) Walk(days []Day) error {
	if len(days) == 0 {
		return nil
	}
	for i := 1; i < len(days); i++ {
		if !days[i].Date.After(days[i-1].Date) {
			return &generic.UnsortedDayError{Previous: days[i-1].Date, Got: days[i].Date}
		}
	}

	if last := m.ctx.EvaluatedThrough; !last.IsZero() && !days[0].Date.After(last) {
		m.rewind(days[0].Date)
	}

	for _, d := range days {
		if last := m.ctx.EvaluatedThrough; !last.IsZero() {
			for gap := last.AddDays(1); gap.Before(d.Date); gap = gap.AddDays(1) {
				m.step(Day{Date: gap, Kind: KindWorkOrOff})
			}
		}
		m.step(d)
	}
	return nil
}

func (m *Machine) rewind(from generic.TimePoint) {
	i := sort.Search(len(m.order), func(i int) bool { return !m.order[i].Before(from) })
	if i == 0 {
		m.ctx = Context{}
	} else {
		m.ctx = m.snapshots[m.order[i-1]].clone()
	}
	for _, date := range m.order[i:] {
		delete(m.snapshots, date)
	}
	m.order = m.order[:i]

	j := sort.Search(len(m.rejections), func(j int) bool { return !m.rejections[j].Date.Before(from) })
	m.rejections = m.rejections[:j]
}

// step is the transition function. One call per calendar day.
func (m *Machine) step(d Day) {
	c := &m.ctx

	// The audited rule is asked once, on the first day past the limit.
	if c.State != StateTooOld && d.Date.After(m.profile.LastPayableDay) &&
		!m.profile.IsWithin70YearLimit(d.Date) {
		c.State = StateTooOld
		c.Reason = TooOld
	}

	switch c.State {
	case StateInitial:
		if d.Kind == KindPayable {
			m.openWindow(d.Date)
			m.consume(d.Date)
		}

	case StateActivelySick:
		switch d.Kind {
		case KindPayable:
			m.consume(d.Date)
		case KindSicknessNonPayable:
		default:
			c.BreakDays = 1
			c.State = StateOnBreak
		}

	case StateOnBreak:
		if d.Kind == KindPayable {
			c.BreakDays = 0
			c.State = StateActivelySick
			m.consume(d.Date)
			break
		}
		m.accrueBreak(d.Date)

	case StateExhausted:
		if d.Kind == KindPayable {
			m.reject(d.Date, c.Reason)
		}
		m.accrueBreak(d.Date)

	case StateRequalifiedPendingConfirmation:
		switch d.Kind {
		case KindPayable:
			m.resetPool()
			m.openWindow(d.Date)
			m.consume(d.Date)
		case KindSicknessNonPayable:
			// Sickness that cannot confirm the new pool needs a new assessment.
			m.reject(d.Date, NewEligibilityAssessmentRequired)
			c.State = StateExhausted
			c.Reason = NewEligibilityAssessmentRequired
			c.BreakDays = 0
		}

	case StateTooOld:
		if d.Kind == KindPayable {
			m.reject(d.Date, TooOld)
		}
	}

	c.EvaluatedThrough = d.Date
	m.snapshots[d.Date] = c.clone()
	m.order = append(m.order, d.Date)
}

func (m *Machine) openWindow(date generic.TimePoint) {
	m.ctx.State = StateActivelySick
	m.ctx.WindowStart = date
	m.ctx.LookbackStart = date.AddYears(-LookbackYears)
	m.ctx.BreakDays = 0
}

func (m *Machine) resetPool() {
	m.ctx = Context{EvaluatedThrough: m.ctx.EvaluatedThrough}
}

func (m *Machine) consume(date generic.TimePoint) {
	c := &m.ctx
	c.LookbackStart = date.AddYears(-LookbackYears)

	kept := c.PaidDates[:0]
	for _, paid := range c.PaidDates {
		if !paid.Before(c.LookbackStart) {
			kept = append(kept, paid)
		}
	}
	c.PaidDates = append(kept, date)

	// Paid dates only increase, so the over-67 pool is chosen once per window
	// through the audited rule. Earlier dates were already decided.
	over67 := c.ConsumedOver67 > 0
	if !over67 && date.After(m.profile.Age67Date) {
		over67 = !m.profile.IsWithin67YearLimit(date)
	}

	c.ConsumedDays = len(c.PaidDates)
	c.ConsumedOver67 = 0
	for _, paid := range c.PaidDates[:len(c.PaidDates)-1] {
		if paid.After(m.profile.Age67Date) {
			c.ConsumedOver67++
		}
	}
	if over67 {
		c.ConsumedOver67++
	}

	switch {
	case c.ConsumedDays >= StandardPool:
		m.exhaust(date, StandardPoolExhausted)
	case c.ConsumedOver67 >= ExtendedPool:
		m.exhaust(date, StandardPoolExhaustedOver67)
	}
}

func (m *Machine) exhaust(date generic.TimePoint, reason Reason) {
	c := &m.ctx
	c.State = StateExhausted
	c.Reason = reason
	c.ExhaustionDate = date
	c.BreakDays = 0

	statute := audit.StatuteMaximumDays
	if reason == StandardPoolExhaustedOver67 {
		statute = audit.StatuteOver67
	}
	m.report(statute, map[string]any{
		"date":             date.String(),
		"window_start":     c.WindowStart.String(),
		"consumed_days":    c.ConsumedDays,
		"consumed_over_67": c.ConsumedOver67,
	}, map[string]any{"exhausted": true, "reason": string(reason)})
}

func (m *Machine) accrueBreak(date generic.TimePoint) {
	c := &m.ctx
	c.BreakDays++
	if c.BreakDays < QualifyingBreak {
		return
	}

	from := c.State
	switch c.State {
	case StateOnBreak:
		m.resetPool()
	case StateExhausted:
		c.State = StateRequalifiedPendingConfirmation
		c.Reason = NewEligibilityAssessmentRequired
	}
	m.report(audit.StatuteQualifyingBreak, map[string]any{
		"date":       date.String(),
		"break_days": QualifyingBreak,
		"from_state": from.String(),
	}, map[string]any{"sufficient_break": true, "state": m.ctx.State.String()})
}

func (m *Machine) reject(date generic.TimePoint, reason Reason) {
	m.rejections = append(m.rejections, Rejection{Date: date, Reason: reason})
}

func (m *Machine) report(statute audit.Statute, input, output map[string]any) {
	m.sink.Record(audit.Record{Statute: statute, Input: input, Output: output, Context: m.labels})
}
