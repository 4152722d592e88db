package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/repository"
)

func TestMemory_CreateUser(t *testing.T) {
	ctx := context.Background()
	m := repository.NewMemory(repository.Config{})

	u := &domain.User{Username: "alice", Credential: "secret"}
	require.NoError(t, m.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID)
	require.Equal(t, domain.RoleUser, u.Role, "role should default to user")

	err := m.CreateUser(ctx, &domain.User{Username: "alice", Credential: "other"})
	require.True(t, errors.Is(err, errors.CodeAlreadyExists), "duplicate username should conflict: %v", err)

	err = m.CreateUser(ctx, &domain.User{Username: "bob"})
	require.True(t, errors.Is(err, errors.CodeInvalidArgument))

	got, err := m.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = m.GetUser(ctx, "missing")
	require.True(t, errors.Is(err, errors.CodeNotFound))

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestMemory_Rooms(t *testing.T) {
	ctx := context.Background()
	m := repository.NewMemory(repository.Config{})

	admin := mustUser(t, m, "admin", domain.RoleAdmin)
	u1 := mustUser(t, m, "u1", domain.RoleUser)
	u2 := mustUser(t, m, "u2", domain.RoleUser)

	r1 := &domain.Room{Name: "r1", AdminID: admin.ID}
	r2 := &domain.Room{Name: "r2", AdminID: admin.ID}
	require.NoError(t, m.CreateRoom(ctx, r1))
	require.NoError(t, m.CreateRoom(ctx, r2))

	err := m.CreateRoom(ctx, &domain.Room{AdminID: admin.ID})
	require.True(t, errors.Is(err, errors.CodeInvalidArgument), "room name is required")

	_, err = m.InviteUser(ctx, r1.ID, u1.ID)
	require.NoError(t, err)
	room, err := m.InviteUser(ctx, r1.ID, u1.ID)
	require.NoError(t, err)
	require.Equal(t, []string{u1.ID}, room.InvitedUsers, "inviting twice should be a no-op")

	_, err = m.InviteUser(ctx, "missing", u1.ID)
	require.True(t, errors.Is(err, errors.CodeNotFound))

	owned, err := m.ListRoomsByAdmin(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	invited, err := m.ListRoomsByInvitee(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, invited, 1)
	assert.Equal(t, r1.ID, invited[0].ID)

	invited, err = m.ListRoomsByInvitee(ctx, u2.ID)
	require.NoError(t, err)
	assert.Empty(t, invited)

	// Mutating a returned room must not leak into the repository.
	room.InvitedUsers[0] = "tampered"
	stored, err := m.GetRoom(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{u1.ID}, stored.InvitedUsers)
}

func TestMemory_Quizzes(t *testing.T) {
	ctx := context.Background()
	m := repository.NewMemory(repository.Config{})

	admin := mustUser(t, m, "admin", domain.RoleAdmin)
	r := &domain.Room{Name: "r", AdminID: admin.ID}
	require.NoError(t, m.CreateRoom(ctx, r))

	q := &domain.Quiz{
		RoomID: r.ID,
		Title:  "capitals",
		Questions: []domain.Question{
			{Question: "France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: 0},
		},
	}
	require.NoError(t, m.CreateQuiz(ctx, q))

	err := m.CreateQuiz(ctx, &domain.Quiz{RoomID: "missing", Title: "x"})
	require.True(t, errors.Is(err, errors.CodeNotFound))

	got, err := m.GetQuiz(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, "capitals", got.Title)

	got.Questions[0].Options[0] = "tampered"
	again, err := m.GetQuiz(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, "Paris", again.Questions[0].Options[0])

	list, err := m.ListQuizzesByRoom(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMemory_AuthSessions(t *testing.T) {
	ctx := context.Background()
	m := repository.NewMemory(repository.Config{})

	require.NoError(t, m.CreateAuthSession(ctx, "t1", "u1"))
	require.True(t, errors.Is(m.CreateAuthSession(ctx, "t1", "u2"), errors.CodeAlreadyExists))

	id, err := m.GetAuthSession(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "u1", id)

	require.NoError(t, m.DeleteAuthSession(ctx, "t1"))
	_, err = m.GetAuthSession(ctx, "t1")
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func mustUser(t *testing.T, m *repository.Memory, name string, role domain.Role) *domain.User {
	t.Helper()

	u := &domain.User{Username: name, Credential: "pw", Role: role}
	require.NoError(t, m.CreateUser(context.Background(), u))
	return u
}
