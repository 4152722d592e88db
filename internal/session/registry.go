package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/score"
)

type QuizGetter interface {
	GetQuiz(ctx context.Context, id string) (*domain.Quiz, error)
}

type Participants interface {
	Participants(roomID string) []string
}

type Config struct {
	Quizzes      QuizGetter
	Participants Participants
	Leaderboard  *leaderboard.Service
	EventBus     *event.Bus
	Scoring      score.Config
	NowFunc      func() time.Time
}

// Registry owns every quiz session of the process. Each session serializes
// its own mutations, so sessions never block each other.
type Registry struct {
	quizzes      QuizGetter
	participants Participants
	lb           *leaderboard.Service
	eb           *event.Bus
	rule         score.Rule
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(c Config) *Registry {
	now := c.NowFunc
	if now == nil {
		now = time.Now
	}

	return &Registry{
		quizzes:      c.Quizzes,
		participants: c.Participants,
		lb:           c.Leaderboard,
		eb:           c.EventBus,
		rule:         score.NewRule(c.Scoring),
		now:          now,
		sessions:     make(map[string]*Session),
	}
}

type CreateSessionRequest struct {
	QuizID string
	RoomID string
}

// CreateSession creates a waiting session whose participants are the users
// live in the room right now.
func (r *Registry) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.SessionSnapshot, error) {
	if req.QuizID == "" || req.RoomID == "" {
		return nil, errors.InvalidInput("quiz and room are required")
	}

	q, err := r.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	if q.RoomID != req.RoomID {
		return nil, errors.InvalidInput("quiz %s does not belong to room %s", req.QuizID, req.RoomID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	s := newSession(id.String(), req.RoomID, *q, r.participants.Participants(req.RoomID), r.rule)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	ss := s.Snapshot()
	return &ss, nil
}

// Get returns the session or NotFound.
func (r *Registry) Get(_ context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, errors.NotFound("session not found: %s", sessionID)
	}

	return s, nil
}

func (r *Registry) Snapshot(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ss := s.Snapshot()
	return &ss, nil
}

// Activate starts the session.
func (r *Registry) Activate(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.Activate(r.now()); err != nil {
		return nil, err
	}

	ss := s.Snapshot()
	r.publish(ctx, domain.EventSessionStarted{Session: ss})
	return &ss, nil
}

type AdvanceRequest struct {
	SessionID     string
	QuestionIndex int
}

// AdvanceResponse carries either the question now open or, once the session
// completed, the final leaderboard.
type AdvanceResponse struct {
	Session        domain.SessionSnapshot
	Question       *domain.PublicQuestion
	TotalQuestions int
	Leaderboard    *domain.Leaderboard
}

func (r *Registry) Advance(ctx context.Context, req AdvanceRequest) (*AdvanceResponse, error) {
	s, err := r.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	res, err := s.Advance(req.QuestionIndex, r.now())
	if err != nil {
		return nil, err
	}

	resp := &AdvanceResponse{
		Session:        s.Snapshot(),
		Question:       res.Question,
		TotalQuestions: res.TotalQuestions,
	}

	if !res.Completed {
		r.publish(ctx, domain.EventQuestionOpened{
			SessionID:      s.ID(),
			RoomID:         s.RoomID(),
			Question:       *res.Question,
			TotalQuestions: res.TotalQuestions,
		})
		return resp, nil
	}

	resp.Leaderboard, err = r.lb.Build(ctx, s.ID(), resp.Session.Scores)
	if err != nil {
		return nil, fmt.Errorf("build leaderboard: %w", err)
	}

	r.publish(ctx, domain.EventSessionCompleted{
		Session:     resp.Session,
		Leaderboard: *resp.Leaderboard,
	})
	return resp, nil
}

type SubmitAnswerRequest struct {
	SessionID string
	Submission
}

type SubmitAnswerResponse struct {
	RoomID        string
	QuestionIndex int
	IsCorrect     bool
	CorrectAnswer int
	Score         decimal.Decimal
	TotalScore    decimal.Decimal
}

// SubmitAnswer records and scores an answer. The response carries the answer
// key and must only reach the submitter.
func (r *Registry) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	s, err := r.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	res, err := s.SubmitAnswer(req.Submission, now)
	if err != nil {
		return nil, err
	}

	r.publish(ctx, domain.EventAnswerRecorded{
		RoomID:        s.RoomID(),
		QuestionIndex: req.QuestionIndex,
		IsCorrect:     res.IsCorrect,
		Score: domain.Score{
			SessionID:  s.ID(),
			UserID:     req.UserID,
			TotalScore: res.TotalScore,
			UpdateTime: now,
		},
	})

	return &SubmitAnswerResponse{
		RoomID:        s.RoomID(),
		QuestionIndex: req.QuestionIndex,
		IsCorrect:     res.IsCorrect,
		CorrectAnswer: res.CorrectAnswer,
		Score:         res.Awarded,
		TotalScore:    res.TotalScore,
	}, nil
}

// GetLeaderboard ranks the session's current scores. It works at any status.
func (r *Registry) GetLeaderboard(ctx context.Context, sessionID string) (*domain.Leaderboard, error) {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return r.lb.Build(ctx, s.ID(), s.Scores())
}

func (r *Registry) publish(ctx context.Context, e event.Event) {
	if r.eb == nil {
		return
	}

	r.eb.Publish(ctx, e)
}
