package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats contains resource usage statistics for a supervised process.
type ProcessStats struct {
	PID            int32         `json:"pid"`
	CPUPercent     float64       `json:"cpu_percent"`
	MemoryRSSBytes uint64        `json:"memory_rss_bytes"`
	BytesWritten   uint64        `json:"bytes_written"`
	WriteRateBps   float64       `json:"write_rate_bps"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// ProcessMonitor samples CPU and memory usage of one process via gopsutil
// and tracks output bandwidth reported by the session writer.
type ProcessMonitor struct {
	pid       int32
	startedAt time.Time
	interval  time.Duration

	mu    sync.RWMutex
	stats ProcessStats

	bytesWritten     atomic.Uint64
	lastBytesWritten uint64
	lastBytesCheck   time.Time

	proc *process.Process

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessMonitor creates a monitor for the given pid.
func NewProcessMonitor(pid int) *ProcessMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	pm := &ProcessMonitor{
		pid:       int32(pid),
		startedAt: time.Now(),
		interval:  time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}

	// A lookup failure just means no CPU/memory samples; bandwidth still works
	if proc, err := process.NewProcess(pm.pid); err == nil {
		pm.proc = proc
	}

	return pm
}

// Start begins sampling in the background.
func (pm *ProcessMonitor) Start() {
	pm.mu.Lock()
	pm.lastBytesCheck = time.Now()
	pm.mu.Unlock()

	pm.wg.Add(1)
	go pm.loop()
}

// Stop halts sampling.
func (pm *ProcessMonitor) Stop() {
	pm.cancel()
	pm.wg.Wait()
}

// Stats returns the current statistics.
func (pm *ProcessMonitor) Stats() ProcessStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := pm.stats
	stats.BytesWritten = pm.bytesWritten.Load()
	return stats
}

// AddBytesWritten adds to the bytes written counter.
func (pm *ProcessMonitor) AddBytesWritten(n uint64) {
	pm.bytesWritten.Add(n)
}

// Alive reports whether the process still exists.
func (pm *ProcessMonitor) Alive() bool {
	if pm.proc == nil {
		return false
	}
	running, err := pm.proc.IsRunning()
	return err == nil && running
}

func (pm *ProcessMonitor) loop() {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.sample()
	for {
		select {
		case <-pm.ctx.Done():
			return
		case <-ticker.C:
			pm.sample()
		}
	}
}

func (pm *ProcessMonitor) sample() {
	now := time.Now()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.stats.PID = pm.pid
	pm.stats.StartedAt = pm.startedAt
	pm.stats.Duration = now.Sub(pm.startedAt)
	pm.stats.LastUpdated = now

	if pm.proc != nil {
		if cpu, err := pm.proc.CPUPercentWithContext(pm.ctx); err == nil {
			pm.stats.CPUPercent = cpu
		}
		if mem, err := pm.proc.MemoryInfoWithContext(pm.ctx); err == nil && mem != nil {
			pm.stats.MemoryRSSBytes = mem.RSS
		}
	}

	currentBytes := pm.bytesWritten.Load()
	if elapsed := now.Sub(pm.lastBytesCheck); elapsed > 0 {
		pm.stats.WriteRateBps = float64(currentBytes-pm.lastBytesWritten) / elapsed.Seconds()
	}
	pm.stats.BytesWritten = currentBytes
	pm.lastBytesWritten = currentBytes
	pm.lastBytesCheck = now
}
