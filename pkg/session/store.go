// Package session holds the in-memory conversation state the dispatcher
// reads and writes on every turn: per-conversation transcripts, the agents
// that served the last turn, rolling context, and performance counters.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/models"
)

// Store maps (user_id, conversation_id) pairs to live sessions.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "session_store"),
	}
}

func sessionKey(userID, conversationID string) string {
	return userID + "\x00" + conversationID
}

// GetOrCreate returns the session for the key, creating it atomically on
// first use.
func (st *Store) GetOrCreate(userID, conversationID string) *Session {
	key := sessionKey(userID, conversationID)

	st.mu.RLock()
	s, ok := st.sessions[key]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[key]; ok {
		return s
	}
	s = newSession(userID, conversationID)
	st.sessions[key] = s
	st.logger.Info("session created", "user_id", userID, "conversation_id", conversationID)
	return s
}

// Get returns the session for the key if it exists.
func (st *Store) Get(userID, conversationID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[sessionKey(userID, conversationID)]
	return s, ok
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Update records a completed turn on the session: the user and agent
// transcript records, the agents that served the turn, the merged result
// context, and the performance counters. The transcript keeps at most the
// last ten turns.
func (st *Store) Update(s *Session, userMsg *models.Message, response *models.AgentResponse, result *models.CollaborationResult) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Transcript = append(s.Transcript, TurnRecord{
		Timestamp: userMsg.Timestamp,
		Direction: DirectionUser,
		Content:   userMsg.Content,
	})

	var collabInfo map[string]any
	if result != nil {
		collabInfo = map[string]any{
			"task_id":       result.TaskID,
			"workflow_type": string(result.WorkflowType),
			"agents":        result.ParticipatingAgents(),
			"success":       result.Success,
		}
	}
	s.Transcript = append(s.Transcript, TurnRecord{
		Timestamp:     now,
		Direction:     DirectionAgent,
		Content:       response.Content,
		AgentID:       response.AgentID,
		Collaboration: collabInfo,
	})
	if overflow := len(s.Transcript) - maxTranscriptRecords; overflow > 0 {
		s.Transcript = s.Transcript[overflow:]
	}

	if result != nil {
		agents := result.ParticipatingAgents()
		if len(agents) > 0 && len(s.CurrentAgents) > 0 && agents[0] != s.CurrentAgents[0] {
			s.Perf.AgentSwitches++
		}
		s.CurrentAgents = agents

		for k, v := range result.FinalContext {
			s.Context[k] = v
		}

		s.Perf.TotalInteractions++
		if result.Success {
			s.Perf.SuccessfulCollaborations++
			s.Status = StatusActive
		} else {
			s.Status = StatusError
		}
	} else {
		s.Perf.TotalInteractions++
		s.Status = StatusError
	}

	s.LastActive = now
}

// Sweep removes sessions idle since before the cutoff and returns how many
// were dropped.
func (st *Store) Sweep(idleCutoff time.Duration) int {
	deadline := time.Now().Add(-idleCutoff)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for key, s := range st.sessions {
		s.mu.RLock()
		idle := s.LastActive.Before(deadline)
		s.mu.RUnlock()
		if idle {
			delete(st.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		st.logger.Info("swept idle sessions", "removed", removed, "remaining", len(st.sessions))
	}
	return removed
}
