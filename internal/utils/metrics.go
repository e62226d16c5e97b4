package utils

import (
	"sync"
	"time"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	messagesSent  uint64
	bytesUploaded uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) IncrementMessagesSent() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.messagesSent++
}

func (mc *MetricsCollector) AddBytesUploaded(n int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if n > 0 {
		mc.bytesUploaded += uint64(n)
	}
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.operationTimes[operationName]; !exists {
		mc.operationTimes[operationName] = make([]int64, 0)
	}
	mc.operationTimes[operationName] = append(
		mc.operationTimes[operationName],
		duration.Nanoseconds(),
	)
}

// Summary is a point-in-time snapshot of the collected metrics,
// exposed on the health endpoint.
type Summary struct {
	UptimeSeconds    float64            `json:"uptimeSeconds"`
	Requests         uint64             `json:"requests"`
	Errors           uint64             `json:"errors"`
	MessagesSent     uint64             `json:"messagesSent"`
	BytesUploaded    uint64             `json:"bytesUploaded"`
	AvgLatencyMillis map[string]float64 `json:"avgLatencyMillis"`
}

func (mc *MetricsCollector) GetSummary() Summary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	avg := make(map[string]float64, len(mc.operationTimes))
	for op, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total int64
		for _, s := range samples {
			total += s
		}
		avg[op] = float64(total) / float64(len(samples)) / float64(time.Millisecond)
	}

	return Summary{
		UptimeSeconds:    time.Since(mc.systemStartTime).Seconds(),
		Requests:         mc.requestCount,
		Errors:           mc.errorCount,
		MessagesSent:     mc.messagesSent,
		BytesUploaded:    mc.bytesUploaded,
		AvgLatencyMillis: avg,
	}
}
