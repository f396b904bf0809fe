package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"sc2-replay-analyzer/internal/ipc"
)

// MemoryLogger logs memory usage periodically during analysis.
type MemoryLogger struct {
	output        *ipc.Output
	log           logrus.FieldLogger
	lastLog       time.Time
	interval      time.Duration
	lastProcessed int
	eventInterval int
}

// NewMemoryLogger creates a new memory logger. output may be nil.
func NewMemoryLogger(output *ipc.Output, log logrus.FieldLogger, interval time.Duration, eventInterval int) *MemoryLogger {
	return &MemoryLogger{
		output:        output,
		log:           log,
		interval:      interval,
		lastLog:       time.Now(),
		eventInterval: eventInterval,
	}
}

// LogIfNeeded logs memory stats if the interval has passed or enough events were processed.
func (ml *MemoryLogger) LogIfNeeded(processed int) {
	now := time.Now()
	shouldLog := false

	if ml.interval > 0 && now.Sub(ml.lastLog) >= ml.interval {
		shouldLog = true
	}
	if ml.eventInterval > 0 && processed-ml.lastProcessed >= ml.eventInterval {
		shouldLog = true
	}
	if !shouldLog {
		return
	}
	ml.lastLog = now
	ml.lastProcessed = processed

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	heapAllocMB := float64(m.HeapAlloc) / (1024 * 1024)
	heapInuseMB := float64(m.HeapInuse) / (1024 * 1024)
	heapSysMB := float64(m.HeapSys) / (1024 * 1024)

	ml.log.WithFields(logrus.Fields{
		"heap_alloc_mb": fmt.Sprintf("%.1f", heapAllocMB),
		"heap_inuse_mb": fmt.Sprintf("%.1f", heapInuseMB),
		"num_gc":        m.NumGC,
		"processed":     processed,
	}).Debug("memory")
	ml.output.Log("info", fmt.Sprintf("Memory: HeapAlloc=%.1fMB, HeapInuse=%.1fMB, HeapSys=%.1fMB, NumGC=%d, Events=%d",
		heapAllocMB, heapInuseMB, heapSysMB, m.NumGC, processed))
}
