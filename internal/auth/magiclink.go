package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/models"
	"github.com/prompt-clan/prompt-arena/internal/storage"
)

// MagicLinkService issues single-use login links for users without a
// Linux.do account. Links live in memory; a restart voids pending links,
// which is acceptable for a 15 minute TTL.
type MagicLinkService struct {
	mu      sync.Mutex
	pending map[string]magicLink

	ttl    time.Duration
	repo   storage.Repository
	tokens *TokenManager
	now    func() time.Time
}

type magicLink struct {
	name      string
	email     string
	expiresAt time.Time
}

// NewMagicLinkService creates the magic link service
func NewMagicLinkService(ttl time.Duration, repo storage.Repository, tokens *TokenManager) *MagicLinkService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MagicLinkService{
		pending: make(map[string]magicLink),
		ttl:     ttl,
		repo:    repo,
		tokens:  tokens,
		now:     time.Now,
	}
}

// Issue creates a single-use login token for the given display name
func (s *MagicLinkService) Issue(name, email string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name must not be empty")
	}

	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	token := hex.EncodeToString(b[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gcLocked()
	s.pending[token] = magicLink{
		name:      name,
		email:     email,
		expiresAt: s.now().Add(s.ttl),
	}
	return token, nil
}

// Redeem consumes a link token, creates or refreshes the user, and
// returns a session token. A token redeems at most once.
func (s *MagicLinkService) Redeem(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	link, ok := s.pending[token]
	if ok {
		delete(s.pending, token)
	}
	s.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("unknown or already used link")
	}
	if s.now().After(link.expiresAt) {
		return "", fmt.Errorf("link expired")
	}

	user := &models.User{
		ID:       magicUserID(link.email, token),
		Name:     link.name,
		Email:    link.email,
		Provider: "magiclink",
	}

	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	return s.tokens.Mint(user)
}

// magicUserID keys identity on the email address, so the same person
// logging in again lands on the same user row with their history and
// standings intact. Email-less links get a per-link random identity.
func magicUserID(email, token string) string {
	if normalized := strings.ToLower(strings.TrimSpace(email)); normalized != "" {
		sum := sha256.Sum256([]byte(normalized))
		return "magic_" + hex.EncodeToString(sum[:])[:16]
	}
	return "magic_" + token[:16]
}

// caller must hold the lock
func (s *MagicLinkService) gcLocked() {
	now := s.now()
	for token, link := range s.pending {
		if now.After(link.expiresAt) {
			delete(s.pending, token)
		}
	}
}
