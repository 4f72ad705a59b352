// Package observability aggregates sync-session telemetry for the debug
// inspector. Counters are atomic so any goroutine can bump them; the
// snapshot struct is what the stats provider serves.
package observability

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SyncSnapshot aggregates the session metrics for the inspector UI.
type SyncSnapshot struct {
	EventsApplied uint64 `json:"events_applied"`
	MessagesSent  uint64 `json:"messages_sent"`
	SendTimeouts  uint64 `json:"send_timeouts"`
	Resyncs       uint64 `json:"resyncs"`
	Pending       int64  `json:"pending"`
	Conversations int64  `json:"conversations"`
}

type SyncStats struct {
	eventsApplied atomic.Uint64
	messagesSent  atomic.Uint64
	sendTimeouts  atomic.Uint64
	resyncs       atomic.Uint64
	pending       atomic.Int64
	conversations atomic.Int64
	startedAt     time.Time
}

func NewSyncStats() *SyncStats {
	return &SyncStats{startedAt: time.Now()}
}

func (s *SyncStats) IncrEventsApplied() { s.eventsApplied.Add(1) }
func (s *SyncStats) IncrMessagesSent() { s.messagesSent.Add(1) }
func (s *SyncStats) IncrSendTimeouts() { s.sendTimeouts.Add(1) }
func (s *SyncStats) IncrResyncs()      { s.resyncs.Add(1) }

func (s *SyncStats) SetPending(n int)       { s.pending.Store(int64(n)) }
func (s *SyncStats) SetConversations(n int) { s.conversations.Store(int64(n)) }

func (s *SyncStats) GetLatest() SyncSnapshot {
	return SyncSnapshot{
		EventsApplied: s.eventsApplied.Load(),
		MessagesSent:  s.messagesSent.Load(),
		SendTimeouts:  s.sendTimeouts.Load(),
		Resyncs:       s.resyncs.Load(),
		Pending:       s.pending.Load(),
		Conversations: s.conversations.Load(),
	}
}

// StatsProvider builds the map served by the debug inspector, combining
// session counters with self process stats (RSS, CPU).
func (s *SyncStats) StatsProvider() map[string]any {
	snapshot := s.GetLatest()
	stats := map[string]any{
		"EventsApplied": snapshot.EventsApplied,
		"MessagesSent":  snapshot.MessagesSent,
		"SendTimeouts":  snapshot.SendTimeouts,
		"Resyncs":       snapshot.Resyncs,
		"Pending":       snapshot.Pending,
		"Conversations": snapshot.Conversations,
		"Uptime":        time.Since(s.startedAt).Round(time.Second).String(),
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := p.MemoryInfo(); err == nil {
			stats["RssMb"] = memInfo.RSS / (1024 * 1024)
		}
		if cpu, err := p.CPUPercent(); err == nil {
			stats["CpuPercent"] = cpu
		}
	}
	return stats
}
