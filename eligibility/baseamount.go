package eligibility

import (
	"sort"
	"time"

	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// BASE AMOUNT ("G") - Indexed yearly on May 1
// =============================================================================

// BaseAmount is one dated entry of the base amount table.
type BaseAmount struct {
	EffectiveFrom generic.TimePoint
	Amount        generic.Money
}

// BaseAmountTable answers "which G applies on this date".
type BaseAmountTable struct {
	entries []BaseAmount
}

// CapMultiplier is the number of base amounts counted towards payout.
var CapMultiplier = generic.MoneyFromInt(6)

// NewBaseAmountTable sorts the entries by effective date.
func NewBaseAmountTable(entries ...BaseAmount) BaseAmountTable {
	sorted := make([]BaseAmount, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom)
	})
	return BaseAmountTable{entries: sorted}
}

// DefaultBaseAmounts is the built-in table. Override with
// factory.LoadBaseAmounts when newer values are published.
func DefaultBaseAmounts() BaseAmountTable {
	may1 := func(year int) generic.TimePoint { return generic.NewTimePoint(year, time.May, 1) }
	return NewBaseAmountTable(
		BaseAmount{may1(2015), generic.MoneyFromInt(90068)},
		BaseAmount{may1(2016), generic.MoneyFromInt(92576)},
		BaseAmount{may1(2017), generic.MoneyFromInt(93634)},
		BaseAmount{may1(2018), generic.MoneyFromInt(96883)},
		BaseAmount{may1(2019), generic.MoneyFromInt(99858)},
		BaseAmount{may1(2020), generic.MoneyFromInt(101351)},
		BaseAmount{may1(2021), generic.MoneyFromInt(106399)},
		BaseAmount{may1(2022), generic.MoneyFromInt(111477)},
		BaseAmount{may1(2023), generic.MoneyFromInt(118620)},
		BaseAmount{may1(2024), generic.MoneyFromInt(124028)},
		BaseAmount{may1(2025), generic.MoneyFromInt(130160)},
	)
}

func (t BaseAmountTable) Len() int { return len(t.entries) }

// Entries returns a copy of the table.
func (t BaseAmountTable) Entries() []BaseAmount {
	out := make([]BaseAmount, len(t.entries))
	copy(out, t.entries)
	return out
}

// At returns the base amount in force on date. Dates before the first entry
// use the first entry. An empty table yields zero.
func (t BaseAmountTable) At(date generic.TimePoint) generic.Money {
	if len(t.entries) == 0 {
		return generic.MoneyFromInt(0)
	}
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].EffectiveFrom.After(date)
	})
	if i == 0 {
		return t.entries[0].Amount
	}
	return t.entries[i-1].Amount
}

// AnnualCap is 6G.
func (t BaseAmountTable) AnnualCap(date generic.TimePoint) generic.Money {
	return t.At(date).Mul(CapMultiplier)
}

// DailyCap is 6G / 260, unrounded.
func (t BaseAmountTable) DailyCap(date generic.TimePoint) generic.Money {
	return generic.DailyFromAnnual(t.AnnualCap(date))
}
