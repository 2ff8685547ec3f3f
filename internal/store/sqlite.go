// Package store provides storage backends for ConsultFlow.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/mattn/go-sqlite3"
	"github.com/modubiz/ConsultFlow/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddMessage persists one conversation turn.
func (s *SQLiteStore) AddMessage(msg models.Message) error {
	_, err := s.db.Exec(`INSERT INTO messages (id, conversation_id, role, agent_type, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.AgentType, msg.Content, msg.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore.AddMessage failed", "error", err, "conversationID", msg.ConversationID)
		return fmt.Errorf("failed to insert message for %s: %w", msg.ConversationID, err)
	}
	slog.Debug("SQLiteStore.AddMessage succeeded", "conversationID", msg.ConversationID, "role", msg.Role)
	return nil
}

// GetRecentMessages returns up to limit messages for a conversation, oldest first.
func (s *SQLiteStore) GetRecentMessages(conversationID string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, agent_type, content, created_at
		FROM (SELECT * FROM messages WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?)
		ORDER BY created_at ASC`, conversationID, limit)
	if err != nil {
		slog.Error("SQLiteStore.GetRecentMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.AgentType, &m.Content, &m.CreatedAt); err != nil {
			slog.Error("SQLiteStore.GetRecentMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore.GetRecentMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return msgs, nil
}

// PruneMessagesBefore deletes messages created before cutoff.
func (s *SQLiteStore) PruneMessagesBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM messages WHERE created_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore.PruneMessagesBefore failed", "error", err)
		return 0, fmt.Errorf("failed to prune messages: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	slog.Debug("SQLiteStore.PruneMessagesBefore succeeded", "removed", removed)
	return removed, nil
}

// CreateProjectWithDocument inserts a project and its document in one
// transaction. The UNIQUE (conversation_id, category) constraint keeps
// auto-save at-most-once per conversation.
func (s *SQLiteStore) CreateProjectWithDocument(p models.Project, doc models.ProjectDocument) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("SQLiteStore.CreateProjectWithDocument begin failed", "error", err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO projects (user_id, conversation_id, category, title, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.ConversationID, p.Category, p.Title, p.Description, p.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			slog.Debug("SQLiteStore.CreateProjectWithDocument duplicate rejected", "conversationID", p.ConversationID, "category", p.Category)
			return 0, ErrProjectExists
		}
		slog.Error("SQLiteStore.CreateProjectWithDocument insert failed", "error", err, "conversationID", p.ConversationID)
		return 0, fmt.Errorf("failed to insert project: %w", err)
	}
	projectID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read project id: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO project_documents (project_id, file_name, content, created_at) VALUES (?, ?, ?, ?)`,
		projectID, doc.FileName, doc.Content, doc.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore.CreateProjectWithDocument document insert failed", "error", err, "projectID", projectID)
		return 0, fmt.Errorf("failed to insert project document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore.CreateProjectWithDocument commit failed", "error", err)
		return 0, fmt.Errorf("failed to commit project: %w", err)
	}
	slog.Debug("SQLiteStore.CreateProjectWithDocument succeeded", "projectID", projectID, "category", p.Category)
	return projectID, nil
}

// GetProjectsByUser returns all projects saved for a user, newest first.
func (s *SQLiteStore) GetProjectsByUser(userID string) ([]models.Project, error) {
	rows, err := s.db.Query(`SELECT id, user_id, conversation_id, category, title, description, created_at
		FROM projects WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore.GetProjectsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.ConversationID, &p.Category, &p.Title, &p.Description, &p.CreatedAt); err != nil {
			slog.Error("SQLiteStore.GetProjectsByUser scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return projects, nil
}

// SavePHQ9Result stores a completed screening, replacing any earlier result
// for the same user.
func (s *SQLiteStore) SavePHQ9Result(r models.PHQ9Result) error {
	responsesJSON, err := json.Marshal(r.Responses)
	if err != nil {
		slog.Error("SQLiteStore.SavePHQ9Result marshal failed", "error", err, "userID", r.UserID)
		return fmt.Errorf("failed to marshal responses: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO phq9_results
		(user_id, conversation_id, responses, total_score, severity_level, severity_label, suicide_risk, interpretation, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.ConversationID, string(responsesJSON), r.TotalScore, r.SeverityLevel, r.SeverityLabel, r.SuicideRisk, r.Interpretation, r.CompletedAt)
	if err != nil {
		slog.Error("SQLiteStore.SavePHQ9Result failed", "error", err, "userID", r.UserID)
		return fmt.Errorf("failed to save screening result for %s: %w", r.UserID, err)
	}
	slog.Debug("SQLiteStore.SavePHQ9Result succeeded", "userID", r.UserID, "score", r.TotalScore)
	return nil
}

// GetLatestPHQ9Result returns the most recent screening for a user.
func (s *SQLiteStore) GetLatestPHQ9Result(userID string) (*models.PHQ9Result, error) {
	var r models.PHQ9Result
	var responsesJSON string
	err := s.db.QueryRow(`SELECT user_id, conversation_id, responses, total_score, severity_level, severity_label, suicide_risk, interpretation, completed_at
		FROM phq9_results WHERE user_id = ?`, userID).Scan(
		&r.UserID, &r.ConversationID, &responsesJSON, &r.TotalScore, &r.SeverityLevel, &r.SeverityLabel, &r.SuicideRisk, &r.Interpretation, &r.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore.GetLatestPHQ9Result failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query screening result: %w", err)
	}
	if err := json.Unmarshal([]byte(responsesJSON), &r.Responses); err != nil {
		slog.Error("SQLiteStore.GetLatestPHQ9Result unmarshal failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to unmarshal responses: %w", err)
	}
	return &r, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
