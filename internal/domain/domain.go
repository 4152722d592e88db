package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// DefaultTimeLimit is the time limit of a question that does not set one.
const DefaultTimeLimit = 30

// User is a registered account. Credential is opaque and never leaves the server.
type User struct {
	ID         string
	Username   string
	Credential string
	Role       Role
	CreateTime time.Time
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Room is a persistent group owned by an admin. InvitedUsers only grows.
type Room struct {
	ID           string
	Name         string
	Description  string
	AdminID      string
	InvitedUsers []string
	CreateTime   time.Time
}

// CanJoin reports whether the user may join the room's live channel.
func (r Room) CanJoin(userID string) bool {
	if r.AdminID == userID {
		return true
	}

	for _, u := range r.InvitedUsers {
		if u == userID {
			return true
		}
	}

	return false
}

type Quiz struct {
	ID          string
	RoomID      string
	Title       string
	Description string
	Questions   []Question
	CreateTime  time.Time
}

// Question is the admin view of a question, including the answer key.
type Question struct {
	Question      string
	Options       []string
	CorrectAnswer int
	TimeLimit     int
}

// Public returns the participant view of the question at index i.
func (q Question) Public(i int) PublicQuestion {
	limit := q.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}

	return PublicQuestion{
		Index:     i,
		Question:  q.Question,
		Options:   append([]string(nil), q.Options...),
		TimeLimit: limit,
	}
}

// PublicQuestion is the participant view of a question. It never carries the answer key.
type PublicQuestion struct {
	Index     int
	Question  string
	Options   []string
	TimeLimit int
}

type SessionStatus string

const (
	SessionStatusWaiting   SessionStatus = "waiting"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// Answer is a recorded answer of one user to one question.
type Answer struct {
	Answer     int
	IsCorrect  bool
	TimeTaken  decimal.Decimal
	SubmitTime time.Time
}

// SessionSnapshot is a point-in-time copy of a quiz session.
type SessionSnapshot struct {
	SessionID            string
	QuizID               string
	RoomID               string
	CurrentQuestionIndex int
	TotalQuestions       int
	Status               SessionStatus
	Scores               []Score
	Answers              map[string]map[int]Answer
	StartTime            *time.Time
	CompleteTime         *time.Time
}

// Score represents a user's score within a quiz session.
type Score struct {
	SessionID  string
	UserID     string
	TotalScore decimal.Decimal
	UpdateTime time.Time
}

// Leaderboard represents a list of users and their scores within a quiz session.
// The list is sorted by score in descending order.
type Leaderboard struct {
	SessionID string
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID   string
	Username string
	Score    decimal.Decimal
}
