package store

import (
	"database/sql"
	"errors"

	_ "github.com/glebarez/go-sqlite"
)

// HistoryStore persists the conversation log and the plan cache.
type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS plans (
			query TEXT PRIMARY KEY,
			plan TEXT NOT NULL,
			hits INTEGER DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

func (h *HistoryStore) AddMessage(chatID string, role string, content string) error {
	query := `INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`
	_, err := h.DB.Exec(query, chatID, role, content)
	return err
}

// Message is one logged chat line.
type Message struct {
	Role    string
	Content string
}

// GetHistory returns the last limit messages of chatID in chronological order.
func (h *HistoryStore) GetHistory(chatID string, limit int) ([]Message, error) {
	query := `SELECT role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := h.DB.Query(query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

// SavePlan stores an encoded plan for query, replacing any previous one.
func (h *HistoryStore) SavePlan(query string, plan []byte) error {
	q := `INSERT INTO plans (query, plan) VALUES (?, ?)
		ON CONFLICT(query) DO UPDATE SET plan = excluded.plan, hits = 0, updated_at = CURRENT_TIMESTAMP`
	_, err := h.DB.Exec(q, query, string(plan))
	return err
}

// LoadPlan returns the encoded plan stored for query.
func (h *HistoryStore) LoadPlan(query string) ([]byte, bool, error) {
	var plan string
	err := h.DB.QueryRow(`SELECT plan FROM plans WHERE query = ?`, query).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if _, err := h.DB.Exec(`UPDATE plans SET hits = hits + 1 WHERE query = ?`, query); err != nil {
		return nil, false, err
	}
	return []byte(plan), true, nil
}

// ForgetPlan drops the cached plan for query.
func (h *HistoryStore) ForgetPlan(query string) error {
	_, err := h.DB.Exec(`DELETE FROM plans WHERE query = ?`, query)
	return err
}

// PlanHits reports how many times the plan for query was served from cache.
func (h *HistoryStore) PlanHits(query string) (int, error) {
	var hits int
	err := h.DB.QueryRow(`SELECT hits FROM plans WHERE query = ?`, query).Scan(&hits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return hits, err
}
