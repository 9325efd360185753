// Package agentstore persists a per-slot ledger of agent sessions —
// when an agent started, how many turns it has taken, what it was last
// asked — so the daemon can answer "what is this slot's agent doing"
// without holding a live PTY connection open.
package agentstore

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slotforge/slotforge/internal/slotz"
)

type Store struct {
	db *sql.DB
}

// Session is one row of a slot's agent session ledger.
type Session struct {
	ID         string
	SlotName   string
	Prompt     string
	TurnCount  int
	StartedAt  time.Time
	LastTurnAt time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, slotz.Wrap(slotz.KindState, path, err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS agent_sessions (
		id TEXT PRIMARY KEY,
		slot_name TEXT NOT NULL,
		prompt TEXT NOT NULL DEFAULT '',
		turn_count INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		last_turn_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_sessions_slot ON agent_sessions(slot_name);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, slotz.Wrapf(slotz.KindState, path, "schema init: %s", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// StartSession records a new agent session for a slot.
func (s *Store) StartSession(id, slotName, prompt string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO agent_sessions (id, slot_name, prompt, started_at, last_turn_at) VALUES (?, ?, ?, ?, ?)`,
		id, slotName, prompt, now, now,
	)
	if err != nil {
		return slotz.Wrap(slotz.KindState, slotName, err)
	}
	return nil
}

// RecordTurn increments the turn count and bumps last_turn_at for a session.
func (s *Store) RecordTurn(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`UPDATE agent_sessions SET turn_count = turn_count + 1, last_turn_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return slotz.Wrap(slotz.KindState, id, err)
	}
	return nil
}

// LatestForSlot returns the most recently started session for slotName,
// or nil if the slot has never had an agent session.
func (s *Store) LatestForSlot(slotName string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, slot_name, prompt, turn_count, started_at, last_turn_at
		 FROM agent_sessions WHERE slot_name = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		slotName,
	)

	var sess Session
	var startedAt, lastTurnAt string
	err := row.Scan(&sess.ID, &sess.SlotName, &sess.Prompt, &sess.TurnCount, &startedAt, &lastTurnAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, slotz.Wrap(slotz.KindState, slotName, err)
	}
	sess.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	sess.LastTurnAt, _ = time.Parse(time.RFC3339, lastTurnAt)
	return &sess, nil
}
