package session

import (
	"maps"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/score"
)

// Session is the state machine of one live run of a quiz:
//
//	waiting --Activate--> active --Advance(i >= len)--> completed
//
// Status and the current question index only move forward. All methods are
// safe for concurrent use; mutations are exclusive, reads are shared.
type Session struct {
	mu sync.RWMutex

	id     string
	roomID string
	quiz   domain.Quiz
	rule   score.Rule

	status domain.SessionStatus
	index  int

	order   []string // participants in the order they were present at creation
	scores  map[string]decimal.Decimal
	updated map[string]time.Time
	answers map[string]map[int]domain.Answer

	startTime    *time.Time
	completeTime *time.Time
}

func newSession(id, roomID string, quiz domain.Quiz, participants []string, rule score.Rule) *Session {
	s := &Session{
		id:      id,
		roomID:  roomID,
		quiz:    quiz,
		rule:    rule,
		status:  domain.SessionStatusWaiting,
		scores:  make(map[string]decimal.Decimal, len(participants)),
		updated: make(map[string]time.Time, len(participants)),
		answers: make(map[string]map[int]domain.Answer, len(participants)),
	}

	for _, u := range participants {
		if _, ok := s.scores[u]; ok {
			continue
		}
		s.order = append(s.order, u)
		s.scores[u] = decimal.Zero
	}

	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) RoomID() string { return s.roomID }

// Activate moves a waiting session to active.
func (s *Session) Activate(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionStatusWaiting {
		return errors.InvalidTransition("session %s is %s, only a waiting session can be activated", s.id, s.status)
	}

	s.status = domain.SessionStatusActive
	s.startTime = &now
	return nil
}

// AdvanceResult is the outcome of Advance. Question is nil when the session completed.
type AdvanceResult struct {
	Completed      bool
	Question       *domain.PublicQuestion
	TotalQuestions int
}

// Advance moves to the question at target. Moving past the last question
// completes the session.
func (s *Session) Advance(target int, now time.Time) (AdvanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.quiz.Questions)

	if s.status != domain.SessionStatusActive {
		return AdvanceResult{}, errors.InvalidTransition("session %s is %s, only an active session can advance", s.id, s.status)
	}

	if target < s.index {
		return AdvanceResult{}, errors.InvalidInput("question index %d is behind the current question %d", target, s.index)
	}

	s.index = target
	if target >= total {
		s.status = domain.SessionStatusCompleted
		s.completeTime = &now
		return AdvanceResult{Completed: true, TotalQuestions: total}, nil
	}

	q := s.quiz.Questions[target].Public(target)
	return AdvanceResult{Question: &q, TotalQuestions: total}, nil
}

// Submission is one user's answer to one question.
type Submission struct {
	UserID        string
	QuestionIndex int
	Answer        int
	// TimeTaken is required and must not be negative.
	TimeTaken *decimal.Decimal
}

// AnswerResult goes to the submitter only: it carries the answer key.
type AnswerResult struct {
	IsCorrect     bool
	CorrectAnswer int
	Awarded       decimal.Decimal
	TotalScore    decimal.Decimal
}

// SubmitAnswer records a user's first answer to a question and scores it.
// A second submission for the same question is rejected and changes nothing.
func (s *Session) SubmitAnswer(req Submission, now time.Time) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.SessionStatusActive {
		return AnswerResult{}, errors.InvalidTransition("session %s is %s, answers are only accepted while active", s.id, s.status)
	}

	total, ok := s.scores[req.UserID]
	if !ok {
		return AnswerResult{}, errors.Forbidden("user %s is not a participant of session %s", req.UserID, s.id)
	}

	if req.QuestionIndex < 0 || req.QuestionIndex >= len(s.quiz.Questions) {
		return AnswerResult{}, errors.InvalidInput("question index %d out of range", req.QuestionIndex)
	}

	if req.QuestionIndex > s.index {
		return AnswerResult{}, errors.InvalidInput("question %d is not open yet", req.QuestionIndex)
	}

	if req.TimeTaken == nil {
		return AnswerResult{}, errors.InvalidInput("time taken is required")
	}

	q := s.quiz.Questions[req.QuestionIndex]
	if req.Answer < 0 || req.Answer >= len(q.Options) {
		return AnswerResult{}, errors.InvalidInput("answer %d out of range", req.Answer)
	}

	if _, dup := s.answers[req.UserID][req.QuestionIndex]; dup {
		return AnswerResult{}, errors.Conflict("answer is already submitted: session=%s user=%s question=%d", s.id, req.UserID, req.QuestionIndex)
	}

	correct := req.Answer == q.CorrectAnswer
	awarded, err := s.rule.Award(correct, *req.TimeTaken)
	if err != nil {
		return AnswerResult{}, err
	}

	if s.answers[req.UserID] == nil {
		s.answers[req.UserID] = make(map[int]domain.Answer)
	}
	s.answers[req.UserID][req.QuestionIndex] = domain.Answer{
		Answer:     req.Answer,
		IsCorrect:  correct,
		TimeTaken:  *req.TimeTaken,
		SubmitTime: now,
	}

	total = total.Add(awarded)
	s.scores[req.UserID] = total
	s.updated[req.UserID] = now

	return AnswerResult{
		IsCorrect:     correct,
		CorrectAnswer: q.CorrectAnswer,
		Awarded:       awarded,
		TotalScore:    total,
	}, nil
}

// Scores returns every participant's score in insertion order.
func (s *Session) Scores() []domain.Score {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scoresLocked()
}

func (s *Session) scoresLocked() []domain.Score {
	scores := make([]domain.Score, 0, len(s.order))
	for _, u := range s.order {
		scores = append(scores, domain.Score{
			SessionID:  s.id,
			UserID:     u,
			TotalScore: s.scores[u],
			UpdateTime: s.updated[u],
		})
	}

	return scores
}

// IsParticipant reports whether the user was present when the session was created.
func (s *Session) IsParticipant(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.scores[userID]
	return ok
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answers := make(map[string]map[int]domain.Answer, len(s.answers))
	for u, a := range s.answers {
		answers[u] = maps.Clone(a)
	}

	return domain.SessionSnapshot{
		SessionID:            s.id,
		QuizID:               s.quiz.ID,
		RoomID:               s.roomID,
		CurrentQuestionIndex: s.index,
		TotalQuestions:       len(s.quiz.Questions),
		Status:               s.status,
		Scores:               s.scoresLocked(),
		Answers:              answers,
		StartTime:            s.startTime,
		CompleteTime:         s.completeTime,
	}
}
