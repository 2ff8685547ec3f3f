// Package store provides storage backends for ConsultFlow.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backed stores for persistent deployments.
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/modubiz/ConsultFlow/internal/models"
)

// Sentinel errors shared by all backends.
var (
	// ErrProjectExists is returned when a project already exists for the
	// conversation and category. Auto-save relies on this to stay
	// at-most-once per conversation.
	ErrProjectExists = errors.New("project already exists for conversation and category")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store defines the persistence operations used by the flow engines and the
// HTTP API.
type Store interface {
	// AddMessage persists one conversation turn.
	AddMessage(msg models.Message) error
	// GetRecentMessages returns up to limit messages for a conversation,
	// oldest first.
	GetRecentMessages(conversationID string, limit int) ([]models.Message, error)
	// PruneMessagesBefore deletes messages created before cutoff and
	// returns the number removed. Used by the retention sweep.
	PruneMessagesBefore(cutoff time.Time) (int64, error)

	// CreateProjectWithDocument inserts a project and its document in a
	// single transaction and returns the new project ID. It returns
	// ErrProjectExists when a project is already saved for the same
	// conversation and category.
	CreateProjectWithDocument(p models.Project, doc models.ProjectDocument) (int64, error)
	// GetProjectsByUser returns all projects saved for a user, newest first.
	GetProjectsByUser(userID string) ([]models.Project, error)

	// SavePHQ9Result stores a completed screening, replacing any earlier
	// result for the same user.
	SavePHQ9Result(r models.PHQ9Result) error
	// GetLatestPHQ9Result returns the most recent screening for a user, or
	// ErrNotFound.
	GetLatestPHQ9Result(userID string) (*models.PHQ9Result, error)

	// Close releases any resources held by the store.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL is
// recognized by URL scheme or key=value connection strings; everything else is
// treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
