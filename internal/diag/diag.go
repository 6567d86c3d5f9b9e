// Package diag counts degraded conditions that the report pipeline absorbs
// silently: skipped joins, unparsable cells, calculator fallbacks. Counters
// never influence computation, they only make the degradation observable.
package diag

import (
	"sync"
	"time"
)

// Collector holds all degradation counters.
type Collector struct {
	mu sync.RWMutex

	loadsTotal        int64
	loadWarningsTotal int64

	joinsSkippedTotal    int64
	rowsUnmatchedTotal   int64
	itemRowsDroppedTotal int64

	valuesUnparsableTotal    int64
	calculatorFallbacksTotal int64
	calculatorPanicsTotal    int64

	exportsTotal int64

	startTime time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordLoad increments the source-load counter and adds any parse warnings.
func (c *Collector) RecordLoad(warnings int) {
	c.mu.Lock()
	c.loadsTotal++
	c.loadWarningsTotal += int64(warnings)
	c.mu.Unlock()
}

// RecordJoinSkipped counts an optional source left un-joined because no
// candidate key column matched.
func (c *Collector) RecordJoinSkipped() {
	c.mu.Lock()
	c.joinsSkippedTotal++
	c.mu.Unlock()
}

// RecordRowsUnmatched counts base rows a join produced no right-side match for.
func (c *Collector) RecordRowsUnmatched(n int) {
	c.mu.Lock()
	c.rowsUnmatchedTotal += int64(n)
	c.mu.Unlock()
}

// RecordItemRowDropped counts an items row excluded from aggregation.
func (c *Collector) RecordItemRowDropped() {
	c.mu.Lock()
	c.itemRowsDroppedTotal++
	c.mu.Unlock()
}

// RecordUnparsableValue counts a cell excluded from a calculation because it
// parsed as neither number nor percentage nor date.
func (c *Collector) RecordUnparsableValue() {
	c.mu.Lock()
	c.valuesUnparsableTotal++
	c.mu.Unlock()
}

// RecordCalculatorFallback counts a calculator that returned its documented
// fallback instead of a computed value.
func (c *Collector) RecordCalculatorFallback() {
	c.mu.Lock()
	c.calculatorFallbacksTotal++
	c.mu.Unlock()
}

// RecordCalculatorPanic counts a calculator isolated by the assembler.
func (c *Collector) RecordCalculatorPanic() {
	c.mu.Lock()
	c.calculatorPanicsTotal++
	c.mu.Unlock()
}

// RecordExport increments the export counter.
func (c *Collector) RecordExport() {
	c.mu.Lock()
	c.exportsTotal++
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	LoadsTotal               int64   `json:"loads_total"`
	LoadWarningsTotal        int64   `json:"load_warnings_total"`
	JoinsSkippedTotal        int64   `json:"joins_skipped_total"`
	RowsUnmatchedTotal       int64   `json:"rows_unmatched_total"`
	ItemRowsDroppedTotal     int64   `json:"item_rows_dropped_total"`
	ValuesUnparsableTotal    int64   `json:"values_unparsable_total"`
	CalculatorFallbacksTotal int64   `json:"calculator_fallbacks_total"`
	CalculatorPanicsTotal    int64   `json:"calculator_panics_total"`
	ExportsTotal             int64   `json:"exports_total"`
	UptimeSeconds            float64 `json:"uptime_seconds"`
}

// GetSnapshot returns a copy of the current counters.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		LoadsTotal:               c.loadsTotal,
		LoadWarningsTotal:        c.loadWarningsTotal,
		JoinsSkippedTotal:        c.joinsSkippedTotal,
		RowsUnmatchedTotal:       c.rowsUnmatchedTotal,
		ItemRowsDroppedTotal:     c.itemRowsDroppedTotal,
		ValuesUnparsableTotal:    c.valuesUnparsableTotal,
		CalculatorFallbacksTotal: c.calculatorFallbacksTotal,
		CalculatorPanicsTotal:    c.calculatorPanicsTotal,
		ExportsTotal:             c.exportsTotal,
		UptimeSeconds:            time.Since(c.startTime).Seconds(),
	}
}
