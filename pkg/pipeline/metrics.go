// pkg/pipeline/metrics.go
package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medsendx/data-gateway/pkg/transport"
)

// StationMetrics tracks delivery statistics for one origin station.
// A station whose records keep abandoning is a maintenance signal in
// itself, before any image-level QC runs.
type StationMetrics struct {
	StationID        string
	Delivered        int
	Abandoned        int
	Attempts         int
	SanitizationOps  int
	AbandonedReasons map[transport.AbandonReason]int
}

// BatchMetrics accumulates per-station and fleet-wide delivery
// statistics across batch runs.
type BatchMetrics struct {
	mu     sync.Mutex
	logger *zap.Logger

	StartTime        time.Time
	Stations         map[string]*StationMetrics
	TotalDelivered   int
	TotalAbandoned   int
	TotalAttempts    int
	AttemptHistogram map[int]int // attempts-per-record -> record count
}

// NewBatchMetrics creates a new metrics accumulator
func NewBatchMetrics(logger *zap.Logger) *BatchMetrics {
	return &BatchMetrics{
		logger:           logger,
		StartTime:        time.Now(),
		Stations:         make(map[string]*StationMetrics),
		AttemptHistogram: make(map[int]int),
	}
}

func (m *BatchMetrics) station(stationID string) *StationMetrics {
	sm, ok := m.Stations[stationID]
	if !ok {
		sm = &StationMetrics{
			StationID:        stationID,
			AbandonedReasons: make(map[transport.AbandonReason]int),
		}
		m.Stations[stationID] = sm
	}
	return sm
}

// RecordSanitization counts the field changes applied to one record
func (m *BatchMetrics) RecordSanitization(stationID string, operations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.station(stationID).SanitizationOps += operations
}

// RecordDelivery incorporates one record's final outcome
func (m *BatchMetrics) RecordDelivery(stationID string, outcome transport.DeliveryOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm := m.station(stationID)
	attempts := outcome.AttemptCount()
	sm.Attempts += attempts
	m.TotalAttempts += attempts
	m.AttemptHistogram[attempts]++

	if outcome.Delivered {
		sm.Delivered++
		m.TotalDelivered++
	} else {
		sm.Abandoned++
		m.TotalAbandoned++
		sm.AbandonedReasons[outcome.Reason]++
	}
}

// DeliveredRatio returns the fleet-wide fraction of delivered records
func (m *BatchMetrics) DeliveredRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.TotalDelivered + m.TotalAbandoned
	if total == 0 {
		return 0
	}
	return float64(m.TotalDelivered) / float64(total)
}

// GenerateReport renders a human-readable summary of the accumulated
// metrics, one station per line.
func (m *BatchMetrics) GenerateReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== Delivery Metrics ===\n")
	sb.WriteString(fmt.Sprintf("Elapsed: %s\n", time.Since(m.StartTime).Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Delivered: %d  Abandoned: %d  Attempts: %d\n",
		m.TotalDelivered, m.TotalAbandoned, m.TotalAttempts))

	stationIDs := make([]string, 0, len(m.Stations))
	for id := range m.Stations {
		stationIDs = append(stationIDs, id)
	}
	sort.Strings(stationIDs)

	for _, id := range stationIDs {
		sm := m.Stations[id]
		sb.WriteString(fmt.Sprintf("  %s: delivered=%d abandoned=%d attempts=%d sanitizationOps=%d\n",
			id, sm.Delivered, sm.Abandoned, sm.Attempts, sm.SanitizationOps))
	}

	return sb.String()
}

// LogSummary emits the current totals through the structured logger
func (m *BatchMetrics) LogSummary() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Delivery metrics summary",
		zap.Int("delivered", m.TotalDelivered),
		zap.Int("abandoned", m.TotalAbandoned),
		zap.Int("attempts", m.TotalAttempts),
		zap.Int("stations", len(m.Stations)))
}
