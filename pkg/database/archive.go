package database

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/masking"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

// Archive persists session snapshots. Writes are upserts keyed by
// (user_id, conversation_id); each turn overwrites the previous row, so
// the table always holds the latest state of every conversation.
// Snapshots pass through the masker before leaving the process.
type Archive struct {
	client *Client
	masker *masking.Service // nil disables masking
}

// NewArchive creates an archive over an open client. masker may be nil.
func NewArchive(client *Client, masker *masking.Service) *Archive {
	return &Archive{client: client, masker: masker}
}

const upsertSessionSQL = `
INSERT INTO chat_sessions (
    session_key, user_id, conversation_id, status,
    current_agents, context, transcript, perf,
    started_at, last_active_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (session_key) DO UPDATE SET
    status = EXCLUDED.status,
    current_agents = EXCLUDED.current_agents,
    context = EXCLUDED.context,
    transcript = EXCLUDED.transcript,
    perf = EXCLUDED.perf,
    last_active_at = EXCLUDED.last_active_at`

// SaveSnapshot upserts one session snapshot.
func (a *Archive) SaveSnapshot(ctx context.Context, snap session.Snapshot) error {
	if a.masker != nil {
		snap = a.masker.MaskSnapshot(snap)
	}
	agents, err := json.Marshal(snap.CurrentAgents)
	if err != nil {
		return fmt.Errorf("failed to encode current agents: %w", err)
	}
	sessionContext, err := json.Marshal(snap.Context)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}
	transcript, err := json.Marshal(snap.Transcript)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	perf, err := json.Marshal(snap.Perf)
	if err != nil {
		return fmt.Errorf("failed to encode perf counters: %w", err)
	}

	key := snap.UserID + ":" + snap.ConversationID
	_, err = a.client.db.ExecContext(ctx, upsertSessionSQL,
		key, snap.UserID, snap.ConversationID, string(snap.Status),
		agents, sessionContext, transcript, perf,
		snap.StartTime, snap.LastActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", key, err)
	}
	return nil
}

// LoadSnapshot reads the persisted snapshot for one conversation, if any.
func (a *Archive) LoadSnapshot(ctx context.Context, userID, conversationID string) (session.Snapshot, bool, error) {
	const query = `
SELECT status, current_agents, context, transcript, perf, started_at, last_active_at
FROM chat_sessions WHERE session_key = $1`

	var (
		snap                              session.Snapshot
		status                            string
		agents, sessCtx, transcript, perf []byte
	)
	key := userID + ":" + conversationID
	row := a.client.db.QueryRowContext(ctx, query, key)
	err := row.Scan(&status, &agents, &sessCtx, &transcript, &perf, &snap.StartTime, &snap.LastActive)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return session.Snapshot{}, false, nil
		}
		return session.Snapshot{}, false, fmt.Errorf("failed to load session %s: %w", key, err)
	}

	snap.UserID = userID
	snap.ConversationID = conversationID
	snap.Status = session.Status(status)
	if err := json.Unmarshal(agents, &snap.CurrentAgents); err != nil {
		return session.Snapshot{}, false, fmt.Errorf("failed to decode current agents: %w", err)
	}
	if err := json.Unmarshal(sessCtx, &snap.Context); err != nil {
		return session.Snapshot{}, false, fmt.Errorf("failed to decode session context: %w", err)
	}
	if err := json.Unmarshal(transcript, &snap.Transcript); err != nil {
		return session.Snapshot{}, false, fmt.Errorf("failed to decode transcript: %w", err)
	}
	if err := json.Unmarshal(perf, &snap.Perf); err != nil {
		return session.Snapshot{}, false, fmt.Errorf("failed to decode perf counters: %w", err)
	}
	return snap, true, nil
}

// PurgeIdleBefore deletes rows whose last activity predates the cutoff and
// returns how many were removed.
func (a *Archive) PurgeIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.client.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE last_active_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale sessions: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of persisted sessions.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.client.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
