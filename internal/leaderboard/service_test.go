package leaderboard_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/leaderboard"
)

func TestRank(t *testing.T) {
	type (
		inputs struct {
			scores []domain.Score
			names  map[string]string
		}

		outputs struct {
			leaderboard domain.Leaderboard
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should sort by score in descending order": {
			arrange: func() inputs {
				return inputs{
					scores: []domain.Score{score("u1", 1000), score("u2", 500), score("u3", 1500)},
					names:  map[string]string{"u1": "alice", "u2": "bob", "u3": "carol"},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Equal(t, []string{"carol", "alice", "bob"}, usernames(out.leaderboard))
				require.Equal(t, []int64{1500, 1000, 500}, points(out.leaderboard))
			},
		},

		"ties should keep insertion order": {
			arrange: func() inputs {
				return inputs{
					scores: []domain.Score{score("u2", 500), score("u1", 500), score("u3", 900)},
					names:  map[string]string{"u1": "alice", "u2": "bob", "u3": "carol"},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Equal(t, []string{"carol", "bob", "alice"}, usernames(out.leaderboard))
			},
		},

		"unknown users should be left out": {
			arrange: func() inputs {
				return inputs{
					scores: []domain.Score{score("u1", 100), score("ghost", 900)},
					names:  map[string]string{"u1": "alice"},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Equal(t, []string{"alice"}, usernames(out.leaderboard))
			},
		},

		"no scores should give an empty leaderboard": {
			arrange: func() inputs {
				return inputs{}
			},

			assert: func(t *testing.T, out outputs) {
				require.Empty(t, out.leaderboard.Entries)
				require.Equal(t, "s1", out.leaderboard.SessionID)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			out := outputs{leaderboard: leaderboard.Rank("s1", in.scores, in.names)}

			tt.assert(t, out)
		})
	}
}

func TestService_Build(t *testing.T) {
	s := leaderboard.NewService(leaderboard.Config{
		Users: fakeUsers{"u1": "alice", "u2": "bob"},
	})

	l, err := s.Build(context.Background(), "s1", []domain.Score{score("u1", 100), score("u2", 200), score("u3", 300)})
	require.NoError(t, err)

	require.Equal(t, &domain.Leaderboard{
		SessionID: "s1",
		Entries: []domain.LeaderboardEntry{
			{UserID: "u2", Username: "bob", Score: decimal.NewFromInt(200)},
			{UserID: "u1", Username: "alice", Score: decimal.NewFromInt(100)},
		},
	}, l)
}

type fakeUsers map[string]string

func (f fakeUsers) GetUser(_ context.Context, id string) (*domain.User, error) {
	name, ok := f[id]
	if !ok {
		return nil, errors.NotFound("user not found: %s", id)
	}

	return &domain.User{ID: id, Username: name}, nil
}

func score(user string, points int64) domain.Score {
	return domain.Score{SessionID: "s1", UserID: user, TotalScore: decimal.NewFromInt(points)}
}

func usernames(l domain.Leaderboard) []string {
	var names []string
	for _, e := range l.Entries {
		names = append(names, e.Username)
	}
	return names
}

func points(l domain.Leaderboard) []int64 {
	var ps []int64
	for _, e := range l.Entries {
		ps = append(ps, e.Score.IntPart())
	}
	return ps
}
