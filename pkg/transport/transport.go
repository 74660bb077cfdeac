// pkg/transport/transport.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/medsendx/data-gateway/pkg/model"
)

// AbandonReason explains why a record's delivery was given up on
type AbandonReason string

const (
	// ReasonRetriesExhausted means the attempt budget ran out on
	// transient failures
	ReasonRetriesExhausted AbandonReason = "retries_exhausted"
	// ReasonPermanent means the channel classified the send as
	// unretryable
	ReasonPermanent AbandonReason = "permanent_failure"
	// ReasonCancelled means an external cancellation was observed
	// before or during a backoff wait
	ReasonCancelled AbandonReason = "cancelled"
	// ReasonPolicyViolation means sanitization failed for the record;
	// delivery was never attempted
	ReasonPolicyViolation AbandonReason = "policy_violation"
)

// TransferAttempt records one send on the channel: its zero-based
// index, the delay waited before it fired, the channel's classification
// and when it happened. The list per record is append-only.
type TransferAttempt struct {
	Index     int
	Delay     time.Duration
	Status    Status
	Timestamp time.Time
}

// DeliveryOutcome is the final status of one record's transfer.
type DeliveryOutcome struct {
	RecordID  string
	Delivered bool
	Reason    AbandonReason // set only when not delivered
	Attempts  []TransferAttempt
	Err       error // detail for policy violations, nil otherwise
}

// AttemptCount returns the number of attempts issued for the record
func (o DeliveryOutcome) AttemptCount() int {
	return len(o.Attempts)
}

// sleepFunc waits for the given duration or until the context is done.
// Injectable so tests never wall-clock sleep.
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transport delivers sanitized records over a caller-supplied channel
// under an exponential backoff policy. It holds no per-record state, so
// a single Transport can serve concurrent record pipelines.
type Transport struct {
	logger *zap.Logger
	sleep  sleepFunc
	rng    *rand.Rand
}

// NewTransport creates a new Transport
func NewTransport(logger *zap.Logger) (*Transport, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Transport{
		logger: logger,
		sleep:  defaultSleep,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// WithSleep replaces the backoff wait implementation. Used by tests to
// capture delays instead of sleeping.
func (t *Transport) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Transport {
	t.sleep = sleep
	return t
}

// WithJitterSeed seeds the jitter source for reproducible runs
func (t *Transport) WithJitterSeed(seed int64) *Transport {
	t.rng = rand.New(rand.NewSource(seed))
	return t
}

// Deliver sends one sanitized record over the channel. Attempt 0 fires
// immediately. On a transient failure with budget remaining it waits
// min(baseDelay * 2^attemptIndex, maxDelay) and retries; a permanent
// failure short-circuits without further attempts. Cancellation
// observed before an attempt or during a wait resolves the record as
// Abandoned with reason cancelled.
func (t *Transport) Deliver(
	ctx context.Context,
	rec *model.SanitizedRecord,
	channel Channel,
	cfg BackoffConfig,
) DeliveryOutcome {
	outcome := DeliveryOutcome{
		RecordID: rec.ID,
		Attempts: make([]TransferAttempt, 0, cfg.MaxAttempts),
	}

	// Delay actually waited before the upcoming attempt; 0 for attempt 0.
	var delayBefore time.Duration

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			outcome.Reason = ReasonCancelled
			t.logger.Warn("Delivery cancelled before attempt",
				zap.String("recordID", rec.ID),
				zap.Int("attempt", attempt))
			return outcome
		default:
		}

		status := channel.Send(ctx, rec)
		outcome.Attempts = append(outcome.Attempts, TransferAttempt{
			Index:     attempt,
			Delay:     delayBefore,
			Status:    status,
			Timestamp: time.Now(),
		})

		switch status {
		case StatusSuccess:
			outcome.Delivered = true
			t.logger.Info("Record delivered",
				zap.String("recordID", rec.ID),
				zap.Int("attempts", len(outcome.Attempts)))
			return outcome

		case StatusPermanentFailure:
			outcome.Reason = ReasonPermanent
			t.logger.Warn("Permanent failure, not retrying",
				zap.String("recordID", rec.ID),
				zap.Int("attempt", attempt))
			return outcome

		case StatusTransientFailure:
			if attempt == cfg.MaxAttempts-1 {
				outcome.Reason = ReasonRetriesExhausted
				t.logger.Warn("Retry budget exhausted",
					zap.String("recordID", rec.ID),
					zap.Int("attempts", len(outcome.Attempts)))
				return outcome
			}

			delayBefore = cfg.delayFor(attempt)
			if cfg.Jitter {
				delayBefore = t.jitter(delayBefore)
			}

			t.logger.Debug("Transient failure, backing off",
				zap.String("recordID", rec.ID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delayBefore))

			if err := t.sleep(ctx, delayBefore); err != nil {
				outcome.Reason = ReasonCancelled
				t.logger.Warn("Delivery cancelled during backoff wait",
					zap.String("recordID", rec.ID),
					zap.Int("attempt", attempt))
				return outcome
			}

		default:
			outcome.Reason = ReasonPermanent
			outcome.Err = fmt.Errorf("channel returned unknown status %v", status)
			return outcome
		}
	}

	// Unreachable: the loop always returns from inside.
	outcome.Reason = ReasonRetriesExhausted
	return outcome
}

// jitter scales a delay by a random factor in [0.5, 1.5]. The
// recorded delay-before-attempt reflects the jittered value.
func (t *Transport) jitter(d time.Duration) time.Duration {
	factor := 0.5 + t.rng.Float64()
	return time.Duration(float64(d) * factor)
}
