package storage

import (
	"context"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

// Repository defines the interface for game persistence
type Repository interface {
	// Users
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	// Submissions
	SaveSubmission(ctx context.Context, sub *models.Submission) error
	// ListSubmissions returns a user's submissions newest first. A
	// non-empty levelID scopes the query to one level; limit applies to
	// the scoped rows.
	ListSubmissions(ctx context.Context, userID, levelID string, limit int) ([]*models.Submission, error)

	// Leaderboard
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	// RecountFlags recomputes a user's distinct solved-level count from
	// their submission history and stores it on the user row
	RecountFlags(ctx context.Context, userID string) (int, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// DefaultLeaderboardLimit caps leaderboard queries with no explicit limit
const DefaultLeaderboardLimit = 50
