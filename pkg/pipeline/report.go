// pkg/pipeline/report.go
package pipeline

import (
	"time"

	"github.com/medsendx/data-gateway/pkg/transport"
)

// BatchReport summarises one batch run: exactly one DeliveryOutcome per
// processed record, in input order. It is built incrementally by the
// orchestrator and immutable once returned to the caller.
type BatchReport struct {
	BatchID       string
	Total         int // records processed (Delivered + Abandoned)
	Delivered     int
	Abandoned     int
	TotalAttempts int // sends issued across all records
	Outcomes      []transport.DeliveryOutcome
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

func newBatchReport(batchID string, capacity int) *BatchReport {
	return &BatchReport{
		BatchID:   batchID,
		StartTime: time.Now(),
		Outcomes:  make([]transport.DeliveryOutcome, 0, capacity),
	}
}

// addOutcome appends one record's outcome and updates the counters.
// Called from a single aggregation point even under concurrent runs.
func (r *BatchReport) addOutcome(outcome transport.DeliveryOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	r.Total++
	r.TotalAttempts += outcome.AttemptCount()
	if outcome.Delivered {
		r.Delivered++
	} else {
		r.Abandoned++
	}
}

// complete finalises the report timings.
func (r *BatchReport) complete() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// SuccessRate returns the percentage of processed records delivered
func (r *BatchReport) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Delivered) / float64(r.Total) * 100
}

// OutcomeFor returns the outcome recorded for a record ID, if any.
func (r *BatchReport) OutcomeFor(recordID string) (transport.DeliveryOutcome, bool) {
	for _, outcome := range r.Outcomes {
		if outcome.RecordID == recordID {
			return outcome, true
		}
	}
	return transport.DeliveryOutcome{}, false
}
