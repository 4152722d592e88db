package leaderboard

import (
	"context"
	"fmt"
	"slices"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type Config struct {
	Users UserLookup
}

// Service derives leaderboards from session scores. Nothing is stored.
type Service struct {
	users UserLookup
}

func NewService(c Config) *Service {
	return &Service{users: c.Users}
}

// Build resolves usernames and ranks the scores. Scores must be given in
// participant insertion order, which is kept for ties. Users that no longer
// resolve are left out.
func (s *Service) Build(ctx context.Context, sessionID string, scores []domain.Score) (*domain.Leaderboard, error) {
	names := make(map[string]string, len(scores))
	for _, sc := range scores {
		u, err := s.users.GetUser(ctx, sc.UserID)
		if errors.Is(err, errors.CodeNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get user %s: %w", sc.UserID, err)
		}
		names[sc.UserID] = u.Username
	}

	l := Rank(sessionID, scores, names)
	return &l, nil
}

// Rank sorts scores in descending order. Equal scores keep their input order.
func Rank(sessionID string, scores []domain.Score, names map[string]string) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(scores))
	for _, sc := range scores {
		name, ok := names[sc.UserID]
		if !ok {
			continue
		}

		entries = append(entries, domain.LeaderboardEntry{
			UserID:   sc.UserID,
			Username: name,
			Score:    sc.TotalScore,
		})
	}

	slices.SortStableFunc(entries, func(a, b domain.LeaderboardEntry) int {
		return b.Score.Cmp(a.Score)
	})

	return domain.Leaderboard{
		SessionID: sessionID,
		Entries:   entries,
	}
}
