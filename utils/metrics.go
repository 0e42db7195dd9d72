package utils

import (
	"sync"
	"time"
)

// Metrics holds in-process counters exposed on /api/metrics
type Metrics struct {
	mu sync.RWMutex

	// requests
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// collections
	BatchesPosted       int64
	BatchesRejected     int64
	InstallmentsUpdated int64
	MembersSkipped      int64
	LastBatchTime       time.Time

	// errors
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics returns an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{ErrorTypes: make(map[string]int64)}
}

// GetMetrics returns the process-wide registry
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// RecordRequest records one served HTTP request, status >= 500 counts as failed.
func (m *Metrics) RecordRequest(duration time.Duration, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if status >= 500 {
		m.FailedRequests++
	}
}

// RecordBatch records a posted payment batch.
func (m *Metrics) RecordBatch(installmentsUpdated, membersSkipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BatchesPosted++
	m.InstallmentsUpdated += int64(installmentsUpdated)
	m.MembersSkipped += int64(membersSkipped)
	m.LastBatchTime = time.Now()
}

// RecordRejectedBatch records a batch refused before any write.
func (m *Metrics) RecordRejectedBatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesRejected++
}

// RecordError records an error by kind.
func (m *Metrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ErrorCount++
	m.LastErrorTime = time.Now()
	if kind == "" {
		kind = "unknown"
	}
	m.ErrorTypes[kind]++
}

// GetMetricsSnapshot returns a copy of the current counters
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_requests":       m.TotalRequests,
		"failed_requests":      m.FailedRequests,
		"average_latency_ms":   m.AverageLatency.Milliseconds(),
		"batches_posted":       m.BatchesPosted,
		"batches_rejected":     m.BatchesRejected,
		"installments_updated": m.InstallmentsUpdated,
		"members_skipped":      m.MembersSkipped,
		"error_count":          m.ErrorCount,
		"error_types":          errorTypes,
	}
}
