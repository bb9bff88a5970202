package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tyler-smith/go-bip39/wordlists"
)

// wordlist is the BIP39 English wordlist (2048 words).
// Two words plus a number gives 2048 × 2048 × 100 = 419 million combinations.
var wordlist = wordlists.English

// inviteCodeStore is the subset of the store the invite generator needs.
type inviteCodeStore interface {
	InviteCodeExists(ctx context.Context, code string) (int64, error)
}

// InviteService generates unique, human-readable session invite codes.
// Codes follow the pattern "word-word-number" (e.g., "amber-river-42").
type InviteService struct {
	store inviteCodeStore
	rng   *rand.Rand
}

// NewInviteService creates an InviteService with its own random source.
func NewInviteService(store inviteCodeStore) *InviteService {
	return &InviteService{
		store: store,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate creates a unique invite code, retrying on collisions.
// Returns an error if no unique code can be found after 100 attempts.
func (s *InviteService) Generate(ctx context.Context) (string, error) {
	maxAttempts := 100
	for i := 0; i < maxAttempts; i++ {
		word1 := wordlist[s.rng.Intn(len(wordlist))]
		word2 := wordlist[s.rng.Intn(len(wordlist))]
		num := s.rng.Intn(100)
		code := fmt.Sprintf("%s-%s-%d", word1, word2, num)

		exists, err := s.store.InviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}

		if exists == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxAttempts)
}
