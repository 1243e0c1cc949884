/*
Package audit defines the call contract of the legal-audit sink.

PURPOSE:
  Every legal determination made by the engine (age thresholds, minimum
  income, pool exhaustion, break sufficiency) is reported as a structured
  Record. The sink is write-only: the core never reads records back and no
  decision may depend on what a sink does with them.

KEY CONCEPTS:
  - Statute: reference to the legal provision the determination applies
  - Record: {statute, input snapshot, output snapshot, evaluation context}
  - Sink: write-only receiver, no error back-channel

IMPLEMENTATIONS:
  - Discard:   drops everything (default when no sink is configured)
  - Collector: keeps records in memory for callers to persist afterwards
  - ZapSink:   mirrors records to a zap logger
  - Tee:       fans a record out to several sinks

SEE ALSO:
  - store/sqlite: persists collected records
  - eligibility/age.go, entitlement/machine.go: producers
*/
package audit

import (
	"sync"

	"go.uber.org/zap"
)

// =============================================================================
// STATUTES
// =============================================================================

type Statute string

const (
	StatuteAge70           Statute = "§ 8-3 1st"  // benefit ceases at 70
	StatuteMinimumIncome   Statute = "§ 8-3 2nd"  // income must exceed 0.5G
	StatuteBenefitCap      Statute = "§ 8-10"     // income counted up to 6G
	StatuteMaximumDays     Statute = "§ 8-12 1st" // 248 payable days
	StatuteQualifyingBreak Statute = "§ 8-12 2nd" // 26 weeks before renewal
	StatuteOver67          Statute = "§ 8-51"     // 60 days and 2G after 67
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one legal determination.
type Record struct {
	Statute Statute           `json:"statute"`
	Input   map[string]any    `json:"input"`
	Output  map[string]any    `json:"output"`
	Context map[string]string `json:"context,omitempty"`
}

// Sink receives records. Implementations must not fail the caller.
type Sink interface {
	Record(r Record)
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard{}
	}
	return s
}

// Discard drops records.
type Discard struct{}

func (Discard) Record(Record) {}

// =============================================================================
// COLLECTOR
// =============================================================================

// Collector keeps records in arrival order. Safe for concurrent use so one
// collector can be shared by the HTTP handlers of a single case.
type Collector struct {
	mu      sync.Mutex
	records []Record
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Record(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
}

// Records returns a copy of everything collected so far.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// ByStatute filters collected records.
func (c *Collector) ByStatute(s Statute) []Record {
	var out []Record
	for _, r := range c.Records() {
		if r.Statute == s {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// ZAP SINK
// =============================================================================

// ZapSink writes each record as a structured info log line.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.L()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (z *ZapSink) Record(r Record) {
	z.logger.Info("legal determination",
		zap.String("statute", string(r.Statute)),
		zap.Any("input", r.Input),
		zap.Any("output", r.Output),
		zap.Any("context", r.Context),
	)
}

// =============================================================================
// TEE
// =============================================================================

// Tee forwards every record to all non-nil sinks in order.
type Tee []Sink

func (t Tee) Record(r Record) {
	for _, s := range t {
		if s != nil {
			s.Record(r)
		}
	}
}
