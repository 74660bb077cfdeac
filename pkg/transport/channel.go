// pkg/transport/channel.go
package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/medsendx/data-gateway/pkg/model"
)

// Status classifies the outcome of a single send on a channel
type Status int

const (
	// StatusSuccess means the record was accepted by the destination
	StatusSuccess Status = iota
	// StatusTransientFailure means the send failed but may succeed on retry
	StatusTransientFailure
	// StatusPermanentFailure means the send can never succeed (e.g.
	// malformed payload) and must not be retried
	StatusPermanentFailure
)

// String returns a string representation of the status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusTransientFailure:
		return "TransientFailure"
	case StatusPermanentFailure:
		return "PermanentFailure"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Channel is the destination capability supplied by the caller. The
// transport treats it as opaque: it only classifies each send as
// success, transient failure or permanent failure. How failures are
// produced (real link, fixed probability, scripted sequence) is the
// channel's own policy.
type Channel interface {
	Send(ctx context.Context, rec *model.SanitizedRecord) Status
}

// StaticChannel always returns the same status. Useful as an
// always-succeed or always-fail destination in tests.
type StaticChannel struct {
	Status Status
}

// Send implements Channel
func (c *StaticChannel) Send(ctx context.Context, rec *model.SanitizedRecord) Status {
	return c.Status
}

// FlakyChannel simulates an unstable 4G/LTE uplink: each send fails
// transiently with a fixed probability. The random source is seeded by
// the caller so runs are reproducible.
type FlakyChannel struct {
	failureRate float64
	mu          sync.Mutex
	rng         *rand.Rand
}

// NewFlakyChannel creates a channel that fails transiently with the
// given probability in [0, 1].
func NewFlakyChannel(failureRate float64, seed int64) *FlakyChannel {
	return &FlakyChannel{
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Send implements Channel
func (c *FlakyChannel) Send(ctx context.Context, rec *model.SanitizedRecord) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rng.Float64() < c.failureRate {
		return StatusTransientFailure
	}
	return StatusSuccess
}

// ScriptedChannel replays a fixed sequence of statuses, then succeeds.
// It makes retry behaviour fully deterministic in tests.
type ScriptedChannel struct {
	mu     sync.Mutex
	script []Status
	next   int
	sends  int
}

// NewScriptedChannel creates a channel that returns the given statuses
// in order. Sends past the end of the script succeed.
func NewScriptedChannel(script ...Status) *ScriptedChannel {
	return &ScriptedChannel{script: script}
}

// Send implements Channel
func (c *ScriptedChannel) Send(ctx context.Context, rec *model.SanitizedRecord) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sends++
	if c.next >= len(c.script) {
		return StatusSuccess
	}
	status := c.script[c.next]
	c.next++
	return status
}

// Sends returns how many sends the scripted channel has served.
func (c *ScriptedChannel) Sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}
