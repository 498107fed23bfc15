package session

import (
	"maps"
	"sync"
	"time"
)

// Direction tags which side of the conversation a transcript record
// belongs to.
type Direction string

const (
	DirectionUser  Direction = "user"
	DirectionAgent Direction = "agent"
)

// Status represents the current state of a conversation session.
type Status string

const (
	StatusActive        Status = "active"
	StatusCollaborating Status = "collaborating"
	StatusWaiting       Status = "waiting"
	StatusCompleted     Status = "completed"
	StatusError         Status = "error"
)

// Context keys the dispatcher and fuser coordinate through.
const (
	ContextKeyHandoffPending = "handoff_pending"
	ContextKeyHandoffTarget  = "handoff_target"
)

// maxTranscriptRecords caps the transcript at the last ten user turns,
// two records per turn.
const maxTranscriptRecords = 20

// TurnRecord is one side of one conversation turn.
type TurnRecord struct {
	Timestamp     time.Time      `json:"timestamp"`
	Direction     Direction      `json:"direction"`
	Content       string         `json:"content"`
	AgentID       string         `json:"agent_id,omitempty"`
	Collaboration map[string]any `json:"collaboration_info,omitempty"`
}

// Perf holds per-session performance counters.
type Perf struct {
	TotalInteractions        int `json:"total_interactions"`
	SuccessfulCollaborations int `json:"successful_collaborations"`
	AgentSwitches            int `json:"agent_switches"`
}

// Session is the per-conversation state tracked across turns.
type Session struct {
	UserID         string
	ConversationID string
	CurrentAgents  []string
	Context        map[string]any
	Transcript     []TurnRecord
	StartTime      time.Time
	LastActive     time.Time
	Status         Status
	Perf           Perf

	mu     sync.RWMutex // protects all mutable fields above
	turnMu sync.Mutex   // serializes turns within the conversation
}

func newSession(userID, conversationID string) *Session {
	now := time.Now()
	return &Session{
		UserID:         userID,
		ConversationID: conversationID,
		CurrentAgents:  []string{},
		Context:        make(map[string]any),
		Transcript:     []TurnRecord{},
		StartTime:      now,
		LastActive:     now,
		Status:         StatusActive,
	}
}

// BeginTurn blocks until any in-flight turn for this conversation has
// finished. Turns are one-at-a-time per session: the dispatcher brackets
// every turn with BeginTurn/EndTurn so agents never handle two messages
// from the same conversation concurrently.
func (s *Session) BeginTurn() {
	s.turnMu.Lock()
}

// EndTurn releases the turn taken by BeginTurn.
func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

// Touch refreshes the last-active timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActive = time.Now()
}

// SetStatus updates the session status.
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// ContextSnapshot returns a shallow copy of the session context, safe to
// hand to the analyzer while the turn runs.
func (s *Session) ContextSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]any, len(s.Context))
	maps.Copy(snapshot, s.Context)
	return snapshot
}

// MergeContext folds the given entries into the session context.
func (s *Session) MergeContext(entries map[string]any) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.Context, entries)
}

// SetHandoff records a pending handoff to the given agent, to be confirmed
// by the user on the next turn.
func (s *Session) SetHandoff(targetAgent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Context[ContextKeyHandoffPending] = true
	s.Context[ContextKeyHandoffTarget] = targetAgent
}

// Handoff reports whether a handoff is pending and to which agent.
func (s *Session) Handoff() (pending bool, target string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending, _ = s.Context[ContextKeyHandoffPending].(bool)
	target, _ = s.Context[ContextKeyHandoffTarget].(string)
	return pending, target
}

// ClearHandoff removes any pending handoff.
func (s *Session) ClearHandoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Context, ContextKeyHandoffPending)
	delete(s.Context, ContextKeyHandoffTarget)
}

// HasCurrentAgent reports whether the agent participated in the most
// recent turn. Routing stickiness keys off this.
func (s *Session) HasCurrentAgent(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.CurrentAgents {
		if id == agentID {
			return true
		}
	}
	return false
}

// PrimaryAgent returns the first agent of the most recent turn, or "".
func (s *Session) PrimaryAgent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.CurrentAgents) == 0 {
		return ""
	}
	return s.CurrentAgents[0]
}

// Snapshot is a read-only copy of a session for API exposure.
type Snapshot struct {
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id"`
	CurrentAgents  []string       `json:"current_agents"`
	Context        map[string]any `json:"context"`
	Transcript     []TurnRecord   `json:"transcript"`
	StartTime      time.Time      `json:"start_time"`
	LastActive     time.Time      `json:"last_active"`
	Status         Status         `json:"status"`
	Perf           Perf           `json:"perf"`
}

// Clone creates a safe copy of the session for reading.
func (s *Session) Clone() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]string, len(s.CurrentAgents))
	copy(agents, s.CurrentAgents)
	transcript := make([]TurnRecord, len(s.Transcript))
	copy(transcript, s.Transcript)
	ctx := make(map[string]any, len(s.Context))
	maps.Copy(ctx, s.Context)

	return Snapshot{
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
		CurrentAgents:  agents,
		Context:        ctx,
		Transcript:     transcript,
		StartTime:      s.StartTime,
		LastActive:     s.LastActive,
		Status:         s.Status,
		Perf:           s.Perf,
	}
}
