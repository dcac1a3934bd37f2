package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

// LocalRepository is a JSON-file implementation of Repository for
// single-instance deployments without a database. State lives in memory
// and is flushed to <dir>/users.json and <dir>/submissions.json on every
// mutation.
type LocalRepository struct {
	mu   sync.RWMutex
	dir  string
	subs []*models.Submission

	users map[string]*models.User
}

// NewLocalRepository creates or reopens a file-backed repository
func NewLocalRepository(dir string) (*LocalRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	r := &LocalRepository{
		dir:   dir,
		users: make(map[string]*models.User),
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *LocalRepository) load() error {
	if data, err := os.ReadFile(filepath.Join(r.dir, "users.json")); err == nil {
		var users []*models.User
		if err := json.Unmarshal(data, &users); err != nil {
			return fmt.Errorf("failed to parse users.json: %w", err)
		}
		for _, u := range users {
			r.users[u.ID] = u
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read users.json: %w", err)
	}

	if data, err := os.ReadFile(filepath.Join(r.dir, "submissions.json")); err == nil {
		if err := json.Unmarshal(data, &r.subs); err != nil {
			return fmt.Errorf("failed to parse submissions.json: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read submissions.json: %w", err)
	}

	return nil
}

// flush writes both files via rename so a crash mid-write cannot leave a
// truncated file. Caller must hold the write lock.
func (r *LocalRepository) flush() error {
	users := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	if err := writeJSON(filepath.Join(r.dir, "users.json"), users); err != nil {
		return err
	}
	return writeJSON(filepath.Join(r.dir, "submissions.json"), r.subs)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

// UpsertUser inserts or refreshes a user's profile fields
func (r *LocalRepository) UpsertUser(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[u.ID]; ok {
		existing.Name = u.Name
		existing.Email = u.Email
		existing.Avatar = u.Avatar
	} else {
		cp := *u
		cp.TotalFlags = 0
		cp.LastFlagAt = 0
		r.users[u.ID] = &cp
	}
	return r.flush()
}

// GetUser returns a user by ID, nil when not found
func (r *LocalRepository) GetUser(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// SaveSubmission appends a submission and updates the user's flag stats
// on success
func (r *LocalRepository) SaveSubmission(_ context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *sub
	r.subs = append(r.subs, &cp)

	if sub.Success {
		if u, ok := r.users[sub.UserID]; ok {
			u.TotalFlags = r.countDistinctSolved(sub.UserID)
			u.LastFlagAt = time.Now().UnixMilli()
		}
	}
	return r.flush()
}

// caller must hold at least the read lock
func (r *LocalRepository) countDistinctSolved(userID string) int {
	solved := make(map[string]bool)
	for _, s := range r.subs {
		if s.UserID == userID && s.Success {
			solved[s.LevelID] = true
		}
	}
	return len(solved)
}

// ListSubmissions returns a user's submissions, newest first, optionally
// scoped to one level
func (r *LocalRepository) ListSubmissions(_ context.Context, userID, levelID string, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Submission
	for i := len(r.subs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.subs[i].UserID != userID {
			continue
		}
		if levelID != "" && r.subs[i].LevelID != levelID {
			continue
		}
		cp := *r.subs[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Leaderboard ranks users by flag count, earliest achiever first on ties
func (r *LocalRepository) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ranked []*models.User
	for _, u := range r.users {
		if u.TotalFlags > 0 {
			ranked = append(ranked, u)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalFlags != ranked[j].TotalFlags {
			return ranked[i].TotalFlags > ranked[j].TotalFlags
		}
		return ranked[i].LastFlagAt < ranked[j].LastFlagAt
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]models.LeaderboardEntry, 0, len(ranked))
	for i, u := range ranked {
		entries = append(entries, models.LeaderboardEntry{
			UserID:     u.ID,
			Name:       u.Name,
			Avatar:     u.Avatar,
			FlagCount:  u.TotalFlags,
			LastActive: u.LastFlagAt,
			Rank:       i + 1,
		})
	}
	return entries, nil
}

// RecountFlags recomputes a user's distinct solved-level count
func (r *LocalRepository) RecountFlags(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return 0, nil
	}

	u.TotalFlags = r.countDistinctSolved(userID)
	if err := r.flush(); err != nil {
		return 0, err
	}
	return u.TotalFlags, nil
}

// AllUserIDs returns every known user id
func (r *LocalRepository) AllUserIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping reports whether the data directory is writable
func (r *LocalRepository) Ping(_ context.Context) error {
	_, err := os.Stat(r.dir)
	return err
}

// Close flushes state one last time
func (r *LocalRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush()
}
