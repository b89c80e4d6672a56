package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Exploration is one stored exploration run.
type Exploration struct {
	ID          string     `json:"id"`
	Component   string     `json:"component"`
	Strategy    string     `json:"strategy"`
	Status      string     `json:"status"`
	Params      []string   `json:"params"`             // stored as a JSON array
	Stats       string     `json:"stats"`              // JSON blob
	Warnings    []string   `json:"warnings,omitempty"` // stored as a JSON array
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Count is the number of stored configurations; filled by reads.
	Count int `json:"count"`
}

// ConfigurationRow is one configuration of an exploration. Values are the
// rendered parameter values in the order of Exploration.Params.
type ConfigurationRow struct {
	ExplorationID string   `json:"exploration_id"`
	Ordinal       int      `json:"ordinal"`
	Key           string   `json:"key"`
	Values        []string `json:"values"`
}

// ExplorationFilter narrows ListExplorations.
type ExplorationFilter struct {
	Component string
	Limit     int
	Offset    int
}

// Store is the persistence interface for exploration results.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Exploration operations
	SaveExploration(ctx context.Context, exp *Exploration, rows []ConfigurationRow) error
	GetExploration(ctx context.Context, id string) (*Exploration, error)
	ListExplorations(ctx context.Context, filter ExplorationFilter) ([]*Exploration, error)
	ListConfigurations(ctx context.Context, explorationID string, limit, offset int) ([]*ConfigurationRow, error)
	DeleteExploration(ctx context.Context, id string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
