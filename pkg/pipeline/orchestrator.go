// pkg/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medsendx/data-gateway/pkg/anonymizer"
	"github.com/medsendx/data-gateway/pkg/model"
	"github.com/medsendx/data-gateway/pkg/transport"
)

// Orchestrator drives the sanitize-then-deliver pipeline across a batch
// of records. Each record is processed independently: a failure of one
// never aborts the batch, and the report preserves input order.
type Orchestrator struct {
	sanitizer *anonymizer.Sanitizer
	transport *transport.Transport
	channel   transport.Channel
	policy    *anonymizer.Policy
	backoff   transport.BackoffConfig
	metrics   *BatchMetrics
	logger    *zap.Logger

	maxRecords  int // 0 means unbounded
	workerCount int // <= 1 means sequential
}

// NewOrchestrator creates an orchestrator. Malformed configuration
// (invalid backoff or policy) fails here, before any record is touched.
func NewOrchestrator(
	sanitizer *anonymizer.Sanitizer,
	tr *transport.Transport,
	channel transport.Channel,
	policy *anonymizer.Policy,
	backoff transport.BackoffConfig,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if sanitizer == nil {
		return nil, errors.New("sanitizer cannot be nil")
	}
	if tr == nil {
		return nil, errors.New("transport cannot be nil")
	}
	if channel == nil {
		return nil, errors.New("channel cannot be nil")
	}
	if policy == nil {
		return nil, errors.New("policy cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := backoff.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backoff config: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	return &Orchestrator{
		sanitizer: sanitizer,
		transport: tr,
		channel:   channel,
		policy:    policy,
		backoff:   backoff,
		metrics:   NewBatchMetrics(logger),
		logger:    logger,
	}, nil
}

// WithMaxRecords caps the number of records processed in one run.
// Records beyond the cap are left untouched and unreported.
func (o *Orchestrator) WithMaxRecords(max int) *Orchestrator {
	if max > 0 {
		o.maxRecords = max
	}
	return o
}

// WithWorkerCount enables concurrent record pipelines. Report order is
// still the input order regardless of completion order.
func (o *Orchestrator) WithWorkerCount(count int) *Orchestrator {
	if count > 0 {
		o.workerCount = count
	}
	return o
}

// Metrics returns the accumulated batch metrics
func (o *Orchestrator) Metrics() *BatchMetrics {
	return o.metrics
}

// Run processes the records in the order supplied: sanitize, then
// deliver under the backoff policy. A PolicyViolation is recorded as an
// immediate abandonment for that record and the batch continues. The
// returned report holds exactly one outcome per processed record.
func (o *Orchestrator) Run(ctx context.Context, records []model.Record) *BatchReport {
	if o.maxRecords > 0 && len(records) > o.maxRecords {
		o.logger.Info("Capping batch",
			zap.Int("supplied", len(records)),
			zap.Int("cap", o.maxRecords))
		records = records[:o.maxRecords]
	}

	batchID := uuid.New().String()
	report := newBatchReport(batchID, len(records))

	o.logger.Info("Starting batch run",
		zap.String("batchID", batchID),
		zap.Int("records", len(records)),
		zap.Int("workers", o.workerCount))

	outcomes := make([]transport.DeliveryOutcome, len(records))
	if o.workerCount > 1 {
		o.runConcurrent(ctx, records, outcomes)
	} else {
		for i := range records {
			outcomes[i] = o.processRecord(ctx, &records[i])
		}
	}

	// Single aggregation point: outcomes land in the report in input
	// order, exactly one per processed record.
	for i := range outcomes {
		report.addOutcome(outcomes[i])
		o.metrics.RecordDelivery(records[i].StationID, outcomes[i])
	}

	report.complete()

	o.logger.Info("Batch run completed",
		zap.String("batchID", batchID),
		zap.Int("delivered", report.Delivered),
		zap.Int("abandoned", report.Abandoned),
		zap.Int("totalAttempts", report.TotalAttempts),
		zap.Duration("duration", report.Duration))

	return report
}

// runConcurrent fans records out to a worker pool. Each worker writes
// only its own index of the outcomes slice, so no locking is needed and
// input order is preserved.
func (o *Orchestrator) runConcurrent(
	ctx context.Context,
	records []model.Record,
	outcomes []transport.DeliveryOutcome,
) {
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < o.workerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := o.logger.With(zap.Int("workerID", workerID))
			for i := range jobs {
				logger.Debug("Processing record",
					zap.String("recordID", records[i].ID))
				outcomes[i] = o.processRecord(ctx, &records[i])
			}
		}(w)
	}

	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// processRecord runs the per-record pipeline: sanitize then deliver.
func (o *Orchestrator) processRecord(ctx context.Context, rec *model.Record) transport.DeliveryOutcome {
	sanitized, operations, err := o.sanitizer.Sanitize(rec, o.policy)
	if err != nil {
		var violation *anonymizer.PolicyViolationError
		if errors.As(err, &violation) {
			o.logger.Warn("Record failed sanitization",
				zap.String("recordID", rec.ID),
				zap.String("field", violation.Field))
		} else {
			o.logger.Error("Unexpected sanitization failure",
				zap.String("recordID", rec.ID),
				zap.Error(err))
		}
		return transport.DeliveryOutcome{
			RecordID: rec.ID,
			Reason:   transport.ReasonPolicyViolation,
			Err:      err,
		}
	}

	o.metrics.RecordSanitization(rec.StationID, len(operations))

	return o.transport.Deliver(ctx, sanitized, o.channel, o.backoff)
}
