package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medsendx/data-gateway/pkg/model"
)

func testRecord() *model.SanitizedRecord {
	return &model.SanitizedRecord{
		Record: model.Record{
			ID:        "rec-001",
			StationID: "MOBILE_CLINIC_01",
			Meta:      model.NewMetadata(),
		},
		Sanitized: true,
	}
}

// sleepRecorder replaces the real timer with an instantaneous sleep
// that records every requested duration.
type sleepRecorder struct {
	slept []time.Duration
	err   error
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return r.err
}

func newTestTransport(t *testing.T, rec *sleepRecorder) *Transport {
	t.Helper()
	tr, err := NewTransport(zap.NewNop())
	require.NoError(t, err)
	return tr.WithSleep(rec.sleep)
}

func defaultCfg() BackoffConfig {
	return BackoffConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// TestDeliver_FirstAttemptImmediate verifies attempt 0 fires with no
// preceding wait.
func TestDeliver_FirstAttemptImmediate(t *testing.T) {
	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec)

	outcome := tr.Deliver(context.Background(), testRecord(), &StaticChannel{Status: StatusSuccess}, defaultCfg())

	assert.True(t, outcome.Delivered)
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, time.Duration(0), outcome.Attempts[0].Delay)
	assert.Empty(t, rec.slept, "no wait before or after a first-attempt success")
}

// TestDeliver_BackoffDoublesUntilCap verifies the wait sequence for an
// always-transient channel is exactly base, 2x, 4x, 8x.
func TestDeliver_BackoffDoublesUntilCap(t *testing.T) {
	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec)

	outcome := tr.Deliver(context.Background(), testRecord(), &StaticChannel{Status: StatusTransientFailure}, defaultCfg())

	assert.False(t, outcome.Delivered)
	assert.Equal(t, ReasonRetriesExhausted, outcome.Reason)
	require.Len(t, outcome.Attempts, 5, "full retry budget consumed")

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	assert.Equal(t, want, rec.slept)

	// The recorded delay-before-attempt mirrors the waits, 0 for attempt 0.
	for i, attempt := range outcome.Attempts {
		assert.Equal(t, i, attempt.Index)
		if i == 0 {
			assert.Equal(t, time.Duration(0), attempt.Delay)
		} else {
			assert.Equal(t, want[i-1], attempt.Delay)
		}
	}
}

// TestDeliver_DelayCappedAtMax verifies growth stops at maxDelay.
func TestDeliver_DelayCappedAtMax(t *testing.T) {
	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec)
	cfg := BackoffConfig{
		MaxAttempts: 6,
		BaseDelay:   1 * time.Second,
		MaxDelay:    4 * time.Second,
	}

	outcome := tr.Deliver(context.Background(), testRecord(), &StaticChannel{Status: StatusTransientFailure}, cfg)

	assert.Equal(t, ReasonRetriesExhausted, outcome.Reason)
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}
	assert.Equal(t, want, rec.slept)
}

// TestDeliver_RecoversAfterTransientFailures verifies a record that
// eventually sends cleanly is marked delivered with its full attempt
// history intact.
func TestDeliver_RecoversAfterTransientFailures(t *testing.T) {
	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec)
	channel := NewScriptedChannel(StatusTransientFailure, StatusTransientFailure, StatusSuccess)

	outcome := tr.Deliver(context.Background(), testRecord(), channel, defaultCfg())

	assert.True(t, outcome.Delivered)
	assert.Empty(t, outcome.Reason)
	require.Len(t, outcome.Attempts, 3)
	assert.Equal(t, StatusSuccess, outcome.Attempts[2].Status)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, rec.slept)
	assert.Equal(t, 3, channel.Sends())
}

// TestDeliver_PermanentFailureShortCircuits verifies a permanent
// failure abandons the record without spending the retry budget.
func TestDeliver_PermanentFailureShortCircuits(t *testing.T) {
	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec)

	outcome := tr.Deliver(context.Background(), testRecord(), &StaticChannel{Status: StatusPermanentFailure}, defaultCfg())

	assert.False(t, outcome.Delivered)
	assert.Equal(t, ReasonPermanent, outcome.Reason)
	assert.Len(t, outcome.Attempts, 1)
	assert.Empty(t, rec.slept)
}

// TestDeliver_CancelledBeforeFirstAttempt verifies a dead context is
// observed before any send happens.
func TestDeliver_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec)
	channel := NewScriptedChannel(StatusSuccess)

	outcome := tr.Deliver(ctx, testRecord(), channel, defaultCfg())

	assert.False(t, outcome.Delivered)
	assert.Equal(t, ReasonCancelled, outcome.Reason)
	assert.Empty(t, outcome.Attempts)
	assert.Equal(t, 0, channel.Sends())
}

// TestDeliver_CancelledDuringBackoffWait verifies cancellation observed
// mid-wait resolves the record instead of retrying.
func TestDeliver_CancelledDuringBackoffWait(t *testing.T) {
	rec := &sleepRecorder{err: context.Canceled}
	tr := newTestTransport(t, rec)

	outcome := tr.Deliver(context.Background(), testRecord(), &StaticChannel{Status: StatusTransientFailure}, defaultCfg())

	assert.False(t, outcome.Delivered)
	assert.Equal(t, ReasonCancelled, outcome.Reason)
	assert.Len(t, outcome.Attempts, 1, "only the attempt before the wait ran")
}

// TestDeliver_JitterStaysWithinBounds verifies every jittered wait lands
// in [0.5, 1.5] times the nominal delay.
func TestDeliver_JitterStaysWithinBounds(t *testing.T) {
	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec).WithJitterSeed(42)
	cfg := defaultCfg()
	cfg.Jitter = true

	outcome := tr.Deliver(context.Background(), testRecord(), &StaticChannel{Status: StatusTransientFailure}, cfg)

	require.Len(t, rec.slept, 4)
	nominal := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, slept := range rec.slept {
		lo := time.Duration(float64(nominal[i]) * 0.5)
		hi := time.Duration(float64(nominal[i]) * 1.5)
		assert.GreaterOrEqual(t, slept, lo, "wait %d below jitter floor", i)
		assert.LessOrEqual(t, slept, hi, "wait %d above jitter ceiling", i)
		// Recorded history reflects the jittered value actually waited
		assert.Equal(t, slept, outcome.Attempts[i+1].Delay)
	}
}

func TestDeliver_SingleAttemptBudget(t *testing.T) {
	rec := &sleepRecorder{}
	tr := newTestTransport(t, rec)
	cfg := defaultCfg()
	cfg.MaxAttempts = 1

	outcome := tr.Deliver(context.Background(), testRecord(), &StaticChannel{Status: StatusTransientFailure}, cfg)

	assert.Equal(t, ReasonRetriesExhausted, outcome.Reason)
	assert.Len(t, outcome.Attempts, 1)
	assert.Empty(t, rec.slept)
}

func TestBackoffConfig_Validate(t *testing.T) {
	valid := defaultCfg()
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		cfg  BackoffConfig
	}{
		{"zero attempts", BackoffConfig{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: time.Minute}},
		{"negative attempts", BackoffConfig{MaxAttempts: -1, BaseDelay: time.Second, MaxDelay: time.Minute}},
		{"zero base delay", BackoffConfig{MaxAttempts: 5, BaseDelay: 0, MaxDelay: time.Minute}},
		{"max below base", BackoffConfig{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Second}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

// TestBackoffConfig_DelayForOverflowGuard verifies absurd attempt
// indexes still resolve to the cap instead of wrapping negative.
func TestBackoffConfig_DelayForOverflowGuard(t *testing.T) {
	cfg := BackoffConfig{MaxAttempts: 100, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	assert.Equal(t, 30*time.Second, cfg.delayFor(63))
	assert.Equal(t, 30*time.Second, cfg.delayFor(40))
	assert.Equal(t, time.Second, cfg.delayFor(0))
}

// TestFlakyChannel_DeterministicForSeed verifies two channels sharing a
// seed replay the same status sequence.
func TestFlakyChannel_DeterministicForSeed(t *testing.T) {
	a := NewFlakyChannel(0.5, 7)
	b := NewFlakyChannel(0.5, 7)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Send(ctx, testRecord()), b.Send(ctx, testRecord()))
	}
}

func TestScriptedChannel_SucceedsAfterScript(t *testing.T) {
	c := NewScriptedChannel(StatusTransientFailure)
	ctx := context.Background()

	assert.Equal(t, StatusTransientFailure, c.Send(ctx, testRecord()))
	assert.Equal(t, StatusSuccess, c.Send(ctx, testRecord()))
	assert.Equal(t, StatusSuccess, c.Send(ctx, testRecord()))
	assert.Equal(t, 3, c.Sends())
}

func TestDefaultSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := defaultSleep(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Success", StatusSuccess.String())
	assert.Equal(t, "TransientFailure", StatusTransientFailure.String())
	assert.Equal(t, "PermanentFailure", StatusPermanentFailure.String())
	assert.Equal(t, "Unknown(9)", Status(9).String())
}
