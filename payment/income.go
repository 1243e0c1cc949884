package payment

import (
	"sort"

	"github.com/warp/sickpay-engine/allocation"
	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// INCOME HISTORY
// =============================================================================

// IncomeHistory answers what a relationship earned on a date. The second
// return is false when nothing is known.
type IncomeHistory interface {
	IncomeAt(relationship string, date generic.TimePoint) (allocation.Income, bool)
}

// IncomeEntry is a monthly income effective from a date until the next
// entry for the same relationship.
type IncomeEntry struct {
	Relationship string
	From         generic.TimePoint
	Monthly      generic.Money
	// RefundMonthly is the monthly amount the employer asks to be refunded.
	// Nil means no refund is requested.
	RefundMonthly *generic.Money
}

// IncomeTable is the in-memory IncomeHistory.
type IncomeTable struct {
	byRelationship map[string][]IncomeEntry
}

func NewIncomeTable(entries ...IncomeEntry) *IncomeTable {
	t := &IncomeTable{byRelationship: make(map[string][]IncomeEntry)}
	for _, e := range entries {
		t.Add(e)
	}
	return t
}

// Add inserts an entry. An entry with the same relationship and date
// replaces the earlier one.
func (t *IncomeTable) Add(e IncomeEntry) {
	list := t.byRelationship[e.Relationship]
	i := sort.Search(len(list), func(i int) bool { return !list[i].From.Before(e.From) })
	if i < len(list) && list[i].From.Equal(e.From) {
		list[i] = e
		return
	}
	list = append(list, IncomeEntry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	t.byRelationship[e.Relationship] = list
}

// Entries returns all entries ordered by relationship then date.
func (t *IncomeTable) Entries() []IncomeEntry {
	ids := make([]string, 0, len(t.byRelationship))
	for id := range t.byRelationship {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []IncomeEntry
	for _, id := range ids {
		out = append(out, t.byRelationship[id]...)
	}
	return out
}

// IncomeAt converts the monthly entry in force on date to daily amounts
// (× 12 / 260). Dates before the first entry have no income.
func (t *IncomeTable) IncomeAt(relationship string, date generic.TimePoint) (allocation.Income, bool) {
	list := t.byRelationship[relationship]
	i := sort.Search(len(list), func(i int) bool { return list[i].From.After(date) })
	if i == 0 {
		return allocation.Income{}, false
	}

	e := list[i-1]
	income := allocation.Income{Daily: generic.DailyFromMonthly(e.Monthly)}
	if e.RefundMonthly != nil {
		refund := generic.DailyFromMonthly(*e.RefundMonthly)
		income.RefundRequest = &refund
	}
	return income, true
}
