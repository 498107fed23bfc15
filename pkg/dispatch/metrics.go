package dispatch

import (
	"sync"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/models"
)

// AgentPerf tracks one agent's invocation statistics.
type AgentPerf struct {
	TotalCalls      int       `json:"total_calls"`
	SuccessCalls    int       `json:"success_calls"`
	AvgResponseTime float64   `json:"avg_response_time"`
	MinResponseTime float64   `json:"min_response_time"`
	MaxResponseTime float64   `json:"max_response_time"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Metrics aggregates per-turn and per-agent counters. All methods are
// safe for concurrent use; updates happen after the turn's response is
// returned, so observers may see slightly stale but never torn values.
type Metrics struct {
	mu sync.Mutex

	totalMessages            int
	successfulCollaborations int
	avgResponseTime          float64

	agentUsage            map[string]int
	collaborationPatterns map[string]int
	agentPerf             map[string]*AgentPerf
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		agentUsage:            make(map[string]int),
		collaborationPatterns: make(map[string]int),
		agentPerf:             make(map[string]*AgentPerf),
	}
}

// RecordTurn folds one completed turn into the counters.
func (m *Metrics) RecordTurn(result *models.CollaborationResult, elapsed time.Duration) {
	if result == nil {
		return
	}
	seconds := elapsed.Seconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalMessages++
	m.avgResponseTime += (seconds - m.avgResponseTime) / float64(m.totalMessages)
	if result.Success {
		m.successfulCollaborations++
	}
	m.collaborationPatterns[string(result.WorkflowType)]++

	for _, entry := range result.Results {
		if entry.AgentID == "" {
			continue
		}
		m.agentUsage[entry.AgentID]++
		m.recordInvocationLocked(entry.AgentID, seconds, !entry.Failed())
	}
}

func (m *Metrics) recordInvocationLocked(agentID string, seconds float64, success bool) {
	perf := m.agentPerf[agentID]
	if perf == nil {
		perf = &AgentPerf{MinResponseTime: seconds, MaxResponseTime: seconds}
		m.agentPerf[agentID] = perf
	}
	perf.TotalCalls++
	if success {
		perf.SuccessCalls++
	}
	perf.AvgResponseTime += (seconds - perf.AvgResponseTime) / float64(perf.TotalCalls)
	if seconds < perf.MinResponseTime {
		perf.MinResponseTime = seconds
	}
	if seconds > perf.MaxResponseTime {
		perf.MaxResponseTime = seconds
	}
	perf.LastUpdated = time.Now()
}

// DispatcherStats snapshots the global counters.
func (m *Metrics) DispatcherStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	successRate := 0.0
	if m.totalMessages > 0 {
		successRate = float64(m.successfulCollaborations) / float64(m.totalMessages)
	}
	usage := make(map[string]int, len(m.agentUsage))
	for k, v := range m.agentUsage {
		usage[k] = v
	}
	patterns := make(map[string]int, len(m.collaborationPatterns))
	for k, v := range m.collaborationPatterns {
		patterns[k] = v
	}
	return map[string]any{
		"total_messages":            m.totalMessages,
		"successful_collaborations": m.successfulCollaborations,
		"average_response_time":     m.avgResponseTime,
		"success_rate":              successRate,
		"agent_usage":               usage,
		"collaboration_patterns":    patterns,
	}
}

// CollaborationStats snapshots the per-agent performance table.
func (m *Metrics) CollaborationStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	agentPerf := make(map[string]any, len(m.agentPerf))
	for agentID, perf := range m.agentPerf {
		successRate := 0.0
		if perf.TotalCalls > 0 {
			successRate = float64(perf.SuccessCalls) / float64(perf.TotalCalls)
		}
		agentPerf[agentID] = map[string]any{
			"total_calls":       perf.TotalCalls,
			"success_calls":     perf.SuccessCalls,
			"success_rate":      successRate,
			"avg_response_time": perf.AvgResponseTime,
			"min_response_time": perf.MinResponseTime,
			"max_response_time": perf.MaxResponseTime,
			"last_updated":      perf.LastUpdated.Format(time.RFC3339),
		}
	}
	return map[string]any{
		"agent_performance": agentPerf,
		"total_agents":      len(agentPerf),
		"updated_at":        time.Now().Format(time.RFC3339),
	}
}

// Usage returns the usage count recorded for one agent.
func (m *Metrics) Usage(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agentUsage[agentID]
}
