package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/generic"
	"github.com/warp/sickpay-engine/payment"
	"github.com/warp/sickpay-engine/store/sqlite"
	"github.com/warp/sickpay-engine/timeline"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) generic.TimePoint { return generic.MustParseDay(s) }

// =============================================================================
// INCOME HISTORY
// =============================================================================

func TestIncomeHistory_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	refund := decimal.NewFromInt(13000)
	require.NoError(t, store.SaveIncome(ctx, "p-1", payment.IncomeEntry{
		Relationship: "acme", From: d("2024-01-01"), Monthly: decimal.NewFromInt(26000),
	}))
	require.NoError(t, store.SaveIncome(ctx, "p-1", payment.IncomeEntry{
		Relationship: "acme", From: d("2024-06-01"), Monthly: decimal.RequireFromString("30333.50"), RefundMonthly: &refund,
	}))
	require.NoError(t, store.SaveIncome(ctx, "p-2", payment.IncomeEntry{
		Relationship: "acme", From: d("2024-01-01"), Monthly: decimal.NewFromInt(1),
	}))

	table, err := store.IncomeHistory(ctx, "p-1")
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, d("2024-01-01"), entries[0].From)
	assert.Nil(t, entries[0].RefundMonthly)
	assert.True(t, decimal.RequireFromString("30333.50").Equal(entries[1].Monthly))
	require.NotNil(t, entries[1].RefundMonthly)
	assert.True(t, refund.Equal(*entries[1].RefundMonthly))

	income, ok := table.IncomeAt("acme", d("2024-03-01"))
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1200).Equal(income.Daily))
}

func TestIncomeHistory_SameDateReplaces(t *testing.T) {
	// GIVEN: an income saved twice for the same relationship and date
	// WHEN:  the history is loaded
	// THEN:  only the latest amounts remain
	ctx := context.Background()
	store := newStore(t)

	entry := payment.IncomeEntry{Relationship: "acme", From: d("2024-01-01"), Monthly: decimal.NewFromInt(26000)}
	require.NoError(t, store.SaveIncome(ctx, "p-1", entry))
	entry.Monthly = decimal.NewFromInt(28000)
	require.NoError(t, store.SaveIncome(ctx, "p-1", entry))

	table, err := store.IncomeHistory(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, table.Entries(), 1)
	assert.True(t, decimal.NewFromInt(28000).Equal(table.Entries()[0].Monthly))
}

func TestIncomeHistory_UnknownPersonIsEmpty(t *testing.T) {
	table, err := newStore(t).IncomeHistory(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, table.Entries())
}

// =============================================================================
// AUDIT RECORDS
// =============================================================================

func TestAuditRecords_KeepOrderAndAppend(t *testing.T) {
	// GIVEN: two batches stored under the same case id
	// WHEN:  the trail is read back
	// THEN:  records come back in insertion order across batches
	ctx := context.Background()
	store := newStore(t)

	first := []audit.Record{
		{
			Statute: audit.StatuteMinimumIncome,
			Input:   map[string]any{"annual_income": "312000", "base_amount": "124028"},
			Output:  map[string]any{"meets": true},
			Context: map[string]string{"case_id": "c-1"},
		},
		{
			Statute: audit.StatuteMaximumDays,
			Input:   map[string]any{"consumed": 248},
			Output:  map[string]any{"exhausted": true},
		},
	}
	second := []audit.Record{
		{Statute: audit.StatuteQualifyingBreak, Input: map[string]any{"break_days": 182}, Output: map[string]any{"requalified": true}},
	}
	require.NoError(t, store.SaveAuditRecords(ctx, "c-1", first))
	require.NoError(t, store.SaveAuditRecords(ctx, "c-1", second))

	got, err := store.AuditRecords(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, audit.StatuteMinimumIncome, got[0].Statute)
	assert.Equal(t, "312000", got[0].Input["annual_income"])
	assert.Equal(t, true, got[0].Output["meets"])
	assert.Equal(t, "c-1", got[0].Context["case_id"])

	assert.Equal(t, audit.StatuteMaximumDays, got[1].Statute)
	assert.Equal(t, float64(248), got[1].Input["consumed"])
	assert.Nil(t, got[1].Context)

	assert.Equal(t, audit.StatuteQualifyingBreak, got[2].Statute)
}

func TestAuditRecords_CaseExists(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	exists, err := store.CaseExists(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.SaveAuditRecords(ctx, "c-1", []audit.Record{
		{Statute: audit.StatuteAge70, Input: map[string]any{}, Output: map[string]any{}},
	}))

	exists, err = store.CaseExists(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, exists)

	records, err := store.AuditRecords(ctx, "c-2")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAuditRecords_FromCollector(t *testing.T) {
	// GIVEN: records produced by a real evaluation
	// WHEN:  they are persisted and read back
	// THEN:  the statutes survive in order
	ctx := context.Background()
	store := newStore(t)

	sink := audit.NewCollector()
	sick := timeline.Sick(generic.Period{Start: d("2024-06-03"), End: d("2024-06-07")}, generic.Hundred,
		timeline.Source{Kind: timeline.SourceSickNote, Seq: 1})
	_, err := payment.Build(payment.Input{
		Relationships: []payment.Relationship{{ID: "acme", Timeline: sick}},
		Incomes: payment.NewIncomeTable(payment.IncomeEntry{
			Relationship: "acme", From: d("2024-01-01"), Monthly: decimal.NewFromInt(26000),
		}),
		BirthDate:   d("1980-03-03"),
		BaseAmounts: eligibility.DefaultBaseAmounts(),
		Audit:       sink,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sink.Records())

	require.NoError(t, store.SaveAuditRecords(ctx, "c-3", sink.Records()))
	got, err := store.AuditRecords(ctx, "c-3")
	require.NoError(t, err)
	require.Len(t, got, len(sink.Records()))
	for i, r := range sink.Records() {
		assert.Equal(t, r.Statute, got[i].Statute)
	}
}
