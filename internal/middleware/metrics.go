package middleware

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const mb = 1 << 20

// MemoryStats 一次运行时内存采样
type MemoryStats struct {
	Alloc      uint64    `json:"alloc"`
	TotalAlloc uint64    `json:"total_alloc"`
	Sys        uint64    `json:"sys"`
	NumGC      uint32    `json:"num_gc"`
	Goroutines int       `json:"goroutines"`
	AllocMB    uint64    `json:"alloc_mb"`
	SysMB      uint64    `json:"sys_mb"`
	SampledAt  time.Time `json:"sampled_at"`
}

// MemorySink 接收每次采样结果，例如 PrometheusMetrics.UpdateMemoryStats
type MemorySink func(MemoryStats)

// MemoryMonitor 定时采样运行时内存，超过阈值时告警
type MemoryMonitor struct {
	logger      *logrus.Logger
	interval    time.Duration
	warnAllocMB uint64
	sinks       []MemorySink

	mu   sync.RWMutex
	last MemoryStats

	quit chan struct{}
	once sync.Once
}

func NewMemoryMonitor(logger *logrus.Logger, interval time.Duration, sinks ...MemorySink) *MemoryMonitor {
	return &MemoryMonitor{
		logger:      logger,
		interval:    interval,
		warnAllocMB: 1024,
		sinks:       sinks,
		quit:        make(chan struct{}),
	}
}

// Start 立即采样一次，然后按间隔采样
func (m *MemoryMonitor) Start() {
	m.sample()
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.quit:
				return
			case <-ticker.C:
				m.report(m.sample())
			}
		}
	}()
}

func (m *MemoryMonitor) Stop() {
	m.once.Do(func() { close(m.quit) })
}

func (m *MemoryMonitor) sample() MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := MemoryStats{
		Alloc:      ms.Alloc,
		TotalAlloc: ms.TotalAlloc,
		Sys:        ms.Sys,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
		AllocMB:    ms.Alloc / mb,
		SysMB:      ms.Sys / mb,
		SampledAt:  time.Now(),
	}

	m.mu.Lock()
	m.last = stats
	m.mu.Unlock()

	for _, sink := range m.sinks {
		sink(stats)
	}
	return stats
}

func (m *MemoryMonitor) report(stats MemoryStats) {
	fields := logrus.Fields{
		"alloc_mb":   stats.AllocMB,
		"sys_mb":     stats.SysMB,
		"num_gc":     stats.NumGC,
		"goroutines": stats.Goroutines,
	}
	if stats.AllocMB > m.warnAllocMB {
		m.logger.WithFields(fields).Warn("High memory usage detected")
		return
	}
	m.logger.WithFields(fields).Debug("Memory stats")
}

// GetStats 最近一次采样
func (m *MemoryMonitor) GetStats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// MetricsEndpoint GET /debug/memory
func (m *MemoryMonitor) MetricsEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"memory": m.GetStats()})
	}
}
