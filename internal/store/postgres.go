// Package store provides storage backends for ConsultFlow.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"
	"github.com/modubiz/ConsultFlow/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pqUniqueViolation = "23505"

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// AddMessage persists one conversation turn.
func (s *PostgresStore) AddMessage(msg models.Message) error {
	_, err := s.db.Exec(`INSERT INTO messages (id, conversation_id, role, agent_type, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.Role, msg.AgentType, msg.Content, msg.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore.AddMessage failed", "error", err, "conversationID", msg.ConversationID)
		return fmt.Errorf("failed to insert message for %s: %w", msg.ConversationID, err)
	}
	slog.Debug("PostgresStore.AddMessage succeeded", "conversationID", msg.ConversationID, "role", msg.Role)
	return nil
}

// GetRecentMessages returns up to limit messages for a conversation, oldest first.
func (s *PostgresStore) GetRecentMessages(conversationID string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, agent_type, content, created_at FROM (
			SELECT * FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`, conversationID, limit)
	if err != nil {
		slog.Error("PostgresStore.GetRecentMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.AgentType, &m.Content, &m.CreatedAt); err != nil {
			slog.Error("PostgresStore.GetRecentMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return msgs, nil
}

// PruneMessagesBefore deletes messages created before cutoff.
func (s *PostgresStore) PruneMessagesBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM messages WHERE created_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore.PruneMessagesBefore failed", "error", err)
		return 0, fmt.Errorf("failed to prune messages: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	slog.Debug("PostgresStore.PruneMessagesBefore succeeded", "removed", removed)
	return removed, nil
}

// CreateProjectWithDocument inserts a project and its document in one
// transaction. The UNIQUE (conversation_id, category) constraint keeps
// auto-save at-most-once per conversation.
func (s *PostgresStore) CreateProjectWithDocument(p models.Project, doc models.ProjectDocument) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("PostgresStore.CreateProjectWithDocument begin failed", "error", err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var projectID int64
	err = tx.QueryRow(`INSERT INTO projects (user_id, conversation_id, category, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.UserID, p.ConversationID, p.Category, p.Title, p.Description, p.CreatedAt).Scan(&projectID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			slog.Debug("PostgresStore.CreateProjectWithDocument duplicate rejected", "conversationID", p.ConversationID, "category", p.Category)
			return 0, ErrProjectExists
		}
		slog.Error("PostgresStore.CreateProjectWithDocument insert failed", "error", err, "conversationID", p.ConversationID)
		return 0, fmt.Errorf("failed to insert project: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO project_documents (project_id, file_name, content, created_at) VALUES ($1, $2, $3, $4)`,
		projectID, doc.FileName, doc.Content, doc.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore.CreateProjectWithDocument document insert failed", "error", err, "projectID", projectID)
		return 0, fmt.Errorf("failed to insert project document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore.CreateProjectWithDocument commit failed", "error", err)
		return 0, fmt.Errorf("failed to commit project: %w", err)
	}
	slog.Debug("PostgresStore.CreateProjectWithDocument succeeded", "projectID", projectID, "category", p.Category)
	return projectID, nil
}

// GetProjectsByUser returns all projects saved for a user, newest first.
func (s *PostgresStore) GetProjectsByUser(userID string) ([]models.Project, error) {
	rows, err := s.db.Query(`SELECT id, user_id, conversation_id, category, title, description, created_at
		FROM projects WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore.GetProjectsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.ConversationID, &p.Category, &p.Title, &p.Description, &p.CreatedAt); err != nil {
			slog.Error("PostgresStore.GetProjectsByUser scan failed", "error", err)
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
func (s *PostgresStore) SavePHQ9Result(r models.PHQ9Result) error {
	responsesJSON, err := json.Marshal(r.Responses)
	if err != nil {
		slog.Error("PostgresStore.SavePHQ9Result marshal failed", "error", err, "userID", r.UserID)
		return fmt.Errorf("failed to marshal responses: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO phq9_results
		(user_id, conversation_id, responses, total_score, severity_level, severity_label, suicide_risk, interpretation, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			responses = EXCLUDED.responses,
			total_score = EXCLUDED.total_score,
			severity_level = EXCLUDED.severity_level,
			severity_label = EXCLUDED.severity_label,
			suicide_risk = EXCLUDED.suicide_risk,
			interpretation = EXCLUDED.interpretation,
			completed_at = EXCLUDED.completed_at`,
		r.UserID, r.ConversationID, string(responsesJSON), r.TotalScore, r.SeverityLevel, r.SeverityLabel, r.SuicideRisk, r.Interpretation, r.CompletedAt)
	if err != nil {
		slog.Error("PostgresStore.SavePHQ9Result failed", "error", err, "userID", r.UserID)
		return fmt.Errorf("failed to save screening result for %s: %w", r.UserID, err)
	}
	slog.Debug("PostgresStore.SavePHQ9Result succeeded", "userID", r.UserID, "score", r.TotalScore)
	return nil
}

// GetLatestPHQ9Result returns the most recent screening for a user.
func (s *PostgresStore) GetLatestPHQ9Result(userID string) (*models.PHQ9Result, error) {
	var r models.PHQ9Result
	var responsesJSON string
	err := s.db.QueryRow(`SELECT user_id, conversation_id, responses, total_score, severity_level, severity_label, suicide_risk, interpretation, completed_at
		FROM phq9_results WHERE user_id = $1`, userID).Scan(
		&r.UserID, &r.ConversationID, &responsesJSON, &r.TotalScore, &r.SeverityLevel, &r.SeverityLabel, &r.SuicideRisk, &r.Interpretation, &r.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore.GetLatestPHQ9Result failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query screening result: %w", err)
	}
	if err := json.Unmarshal([]byte(responsesJSON), &r.Responses); err != nil {
		slog.Error("PostgresStore.GetLatestPHQ9Result unmarshal failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to unmarshal responses: %w", err)
	}
	return &r, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
