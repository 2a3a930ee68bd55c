package domain

import (
	"context"
	"time"
)

// Repository defines the persistence contract for feedback records and
// compliance cases.
type Repository interface {
	// Feedback operations
	SaveFeedback(ctx context.Context, fb *FeedbackRecord) error
	GetFeedback(ctx context.Context, id string) (*FeedbackRecord, error)
	ListEntities(ctx context.Context) ([]string, error)

	// SetClassification writes the classification fields and violation list
	// exactly once; a second write for the same record fails with a
	// ConflictError.
	SetClassification(ctx context.Context, id string, cls *Classification, violations []Violation, processedAt time.Time) error

	// DismissFeedback removes a record from the review queue without
	// deleting it: the complaint flag and violation list are cleared.
	DismissFeedback(ctx context.Context, id string) error

	// ListReviewQueue returns flagged feedback records that do not yet have
	// a compliance case.
	ListReviewQueue(ctx context.Context) ([]*FeedbackRecord, error)

	// CountComplaintsByEntity returns the number of classified complaints
	// recorded against an entity since the given time.
	CountComplaintsByEntity(ctx context.Context, entity string, since time.Time) (int64, error)

	// Case operations. CreateCase assigns the case number from an atomic
	// per-year sequence and fails with a ConflictError when a case already
	// exists for the feedback record.
	CreateCase(ctx context.Context, c *ComplianceCase) error
	GetCase(ctx context.Context, id string) (*ComplianceCase, error)
	GetCaseByFeedback(ctx context.Context, feedbackID string) (*ComplianceCase, error)
	ListCases(ctx context.Context, entity string) ([]*ComplianceCase, error)

	// UpdateCaseCAS persists a mutated case as a single atomic write guarded
	// by the expected current status: status, evidence fields and history
	// are updated together or not at all. A stale expectation fails with a
	// ConflictError.
	UpdateCaseCAS(ctx context.Context, c *ComplianceCase, expect CaseStatus) error

	// GetStats aggregates dashboard counters.
	GetStats(ctx context.Context) (*DashboardStats, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// DashboardStats holds the aggregate counters behind the overview surface.
type DashboardStats struct {
	TotalFeedback       int64            `json:"totalFeedback"`
	TotalComplaints     int64            `json:"totalComplaints"`
	TotalWithViolations int64            `json:"totalWithViolations"`
	ComplianceRate      float64          `json:"complianceRate"` // percent
	Sentiments          map[string]int64 `json:"sentiments"`
	CasesByStatus       map[string]int64 `json:"casesByStatus"`
	CasesByEntity       map[string]int64 `json:"casesByEntity"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
