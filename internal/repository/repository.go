// Package repository keeps users, rooms, quizzes and authentication sessions.
// All lookups are by exact identifier or exact field match.
package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

type Config struct {
	// NowFunc overrides the clock used for create times.
	NowFunc func() time.Time
}

// Memory is a process-lifetime repository. Values handed out are copies.
type Memory struct {
	now func() time.Time

	mu       sync.RWMutex
	users    map[string]domain.User
	byName   map[string]string
	rooms    map[string]*domain.Room
	quizzes  map[string]domain.Quiz
	sessions map[string]string

	// insertion order, for stable listings
	userIDs []string
	roomIDs []string
	quizIDs []string
}

func NewMemory(c Config) *Memory {
	now := c.NowFunc
	if now == nil {
		now = time.Now
	}

	return &Memory{
		now:      now,
		users:    make(map[string]domain.User),
		byName:   make(map[string]string),
		rooms:    make(map[string]*domain.Room),
		quizzes:  make(map[string]domain.Quiz),
		sessions: make(map[string]string),
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate ID: %w", err)
	}

	return id.String(), nil
}

// CreateUser stores a new user and fills its ID and create time.
func (m *Memory) CreateUser(_ context.Context, u *domain.User) error {
	if u.Username == "" || u.Credential == "" {
		return errors.InvalidInput("username and credential are required")
	}

	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Role != domain.RoleAdmin && u.Role != domain.RoleUser {
		return errors.InvalidInput("unknown role %q", u.Role)
	}

	id, err := newID()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[u.Username]; ok {
		return errors.Conflict("username already exists: %s", u.Username)
	}

	u.ID = id
	u.CreateTime = m.now()
	m.users[id] = *u
	m.byName[u.Username] = id
	m.userIDs = append(m.userIDs, id)

	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, errors.NotFound("user not found: %s", id)
	}

	return &u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[username]
	if !ok {
		return nil, errors.NotFound("user not found: %s", username)
	}

	u := m.users[id]
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]domain.User, 0, len(m.userIDs))
	for _, id := range m.userIDs {
		users = append(users, m.users[id])
	}

	return users, nil
}

// CreateRoom stores a new room owned by r.AdminID.
func (m *Memory) CreateRoom(_ context.Context, r *domain.Room) error {
	if r.Name == "" {
		return errors.InvalidInput("room name is required")
	}

	id, err := newID()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[r.AdminID]; !ok {
		return errors.NotFound("user not found: %s", r.AdminID)
	}

	r.ID = id
	r.CreateTime = m.now()
	r.InvitedUsers = slices.Clone(r.InvitedUsers)
	stored := *r
	m.rooms[id] = &stored
	m.roomIDs = append(m.roomIDs, id)

	return nil
}

func (m *Memory) GetRoom(_ context.Context, id string) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[id]
	if !ok {
		return nil, errors.NotFound("room not found: %s", id)
	}

	return copyRoom(r), nil
}

func (m *Memory) ListRoomsByAdmin(_ context.Context, adminID string) ([]domain.Room, error) {
	return m.filterRooms(func(r *domain.Room) bool { return r.AdminID == adminID }), nil
}

func (m *Memory) ListRoomsByInvitee(_ context.Context, userID string) ([]domain.Room, error) {
	return m.filterRooms(func(r *domain.Room) bool { return slices.Contains(r.InvitedUsers, userID) }), nil
}

func (m *Memory) filterRooms(keep func(*domain.Room) bool) []domain.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]domain.Room, 0)
	for _, id := range m.roomIDs {
		if r := m.rooms[id]; keep(r) {
			rooms = append(rooms, *copyRoom(r))
		}
	}

	return rooms
}

// InviteUser adds the user to the room's invitation list. Inviting twice is a no-op.
func (m *Memory) InviteUser(_ context.Context, roomID, userID string) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, errors.NotFound("room not found: %s", roomID)
	}

	if _, ok := m.users[userID]; !ok {
		return nil, errors.NotFound("user not found: %s", userID)
	}

	if !slices.Contains(r.InvitedUsers, userID) {
		r.InvitedUsers = append(r.InvitedUsers, userID)
	}

	return copyRoom(r), nil
}

func copyRoom(r *domain.Room) *domain.Room {
	c := *r
	c.InvitedUsers = slices.Clone(r.InvitedUsers)
	return &c
}

// CreateQuiz stores a new quiz. The quiz must reference an existing room.
func (m *Memory) CreateQuiz(_ context.Context, q *domain.Quiz) error {
	id, err := newID()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[q.RoomID]; !ok {
		return errors.NotFound("room not found: %s", q.RoomID)
	}

	q.ID = id
	q.CreateTime = m.now()
	m.quizzes[id] = copyQuiz(*q)
	m.quizIDs = append(m.quizIDs, id)

	return nil
}

func (m *Memory) GetQuiz(_ context.Context, id string) (*domain.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quizzes[id]
	if !ok {
		return nil, errors.NotFound("quiz not found: %s", id)
	}

	c := copyQuiz(q)
	return &c, nil
}

func (m *Memory) ListQuizzesByRoom(_ context.Context, roomID string) ([]domain.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quizzes := make([]domain.Quiz, 0)
	for _, id := range m.quizIDs {
		if q := m.quizzes[id]; q.RoomID == roomID {
			quizzes = append(quizzes, copyQuiz(q))
		}
	}

	return quizzes, nil
}

func copyQuiz(q domain.Quiz) domain.Quiz {
	qs := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = slices.Clone(question.Options)
		qs[i] = question
	}
	q.Questions = qs
	return q
}

// CreateAuthSession binds an authentication token to a user.
func (m *Memory) CreateAuthSession(_ context.Context, token, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[token]; ok {
		return errors.Conflict("auth session already exists")
	}

	m.sessions[token] = userID
	return nil
}

// GetAuthSession returns the user ID bound to the token.
func (m *Memory) GetAuthSession(_ context.Context, token string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.sessions[token]
	if !ok {
		return "", errors.NotFound("auth session not found")
	}

	return id, nil
}

func (m *Memory) DeleteAuthSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}
