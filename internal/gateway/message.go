package gateway

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizroom/internal/domain"
)

// Inbound events.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventStartQuiz      = "start-quiz"
	EventNextQuestion   = "next-question"
	EventSubmitAnswer   = "submit-answer"
	EventGetLeaderboard = "get-leaderboard"
)

// Outbound events.
const (
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventQuizStarted     = "quiz-started"
	EventQuestionUpdate  = "question-update"
	EventQuizCompleted   = "quiz-completed"
	EventAnswerResult    = "answer-result"
	EventAnswerSubmitted = "answer-submitted"
	EventLeaderboard     = "leaderboard"
	EventError           = "error"
)

type (
	// Frame is an inbound client message.
	Frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}

	// Notification is an outbound server message.
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}
)

type (
	JoinRoomRequest struct {
		RoomID string `json:"roomId"`
		UserID string `json:"userId"`
	}

	LeaveRoomRequest struct {
		RoomID string `json:"roomId"`
	}

	StartQuizRequest struct {
		QuizID string `json:"quizId"`
		RoomID string `json:"roomId"`
	}

	NextQuestionRequest struct {
		SessionID     string `json:"sessionId"`
		QuestionIndex *int   `json:"questionIndex"`
	}

	SubmitAnswerRequest struct {
		SessionID     string           `json:"sessionId"`
		QuestionIndex *int             `json:"questionIndex"`
		Answer        *int             `json:"answer"`
		TimeTaken     *decimal.Decimal `json:"timeTaken"`
	}

	GetLeaderboardRequest struct {
		SessionID string `json:"sessionId"`
	}
)

type (
	UserJoined struct {
		Participants int    `json:"participants"`
		NewUser      string `json:"newUser"`
	}

	UserLeft struct {
		Participants int    `json:"participants"`
		LeftUser     string `json:"leftUser"`
	}

	QuizStarted struct {
		SessionID      string `json:"sessionId"`
		QuizID         string `json:"quizId"`
		TotalQuestions int    `json:"totalQuestions"`
	}

	Question struct {
		Index     int      `json:"index"`
		Question  string   `json:"question"`
		Options   []string `json:"options"`
		TimeLimit int      `json:"timeLimit"`
	}

	QuestionUpdate struct {
		SessionID      string   `json:"sessionId"`
		Question       Question `json:"question"`
		QuestionNumber int      `json:"questionNumber"`
		TotalQuestions int      `json:"totalQuestions"`
	}

	QuizCompleted struct {
		SessionID   string             `json:"sessionId"`
		Leaderboard []LeaderboardEntry `json:"leaderboard"`
	}

	// AnswerResult is sent to the submitter only.
	AnswerResult struct {
		SessionID     string  `json:"sessionId"`
		QuestionIndex int     `json:"questionIndex"`
		IsCorrect     bool    `json:"isCorrect"`
		CorrectAnswer int     `json:"correctAnswer"`
		Score         float64 `json:"score"`
		TotalScore    float64 `json:"totalScore"`
	}

	// AnswerSubmitted is broadcast to the room and never carries the answer key.
	AnswerSubmitted struct {
		SessionID     string `json:"sessionId"`
		UserID        string `json:"userId"`
		Username      string `json:"username"`
		QuestionIndex int    `json:"questionIndex"`
		IsCorrect     bool   `json:"isCorrect"`
	}

	Leaderboard struct {
		SessionID   string             `json:"sessionId"`
		Leaderboard []LeaderboardEntry `json:"leaderboard"`
	}

	LeaderboardEntry struct {
		UserID   string  `json:"userId"`
		Username string  `json:"username"`
		Score    float64 `json:"score"`
	}

	ErrorNotice struct {
		Event   string `json:"event"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

func newQuestion(q domain.PublicQuestion) Question {
	return Question{
		Index:     q.Index,
		Question:  q.Question,
		Options:   q.Options,
		TimeLimit: q.TimeLimit,
	}
}

func newLeaderboardEntries(l *domain.Leaderboard) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, LeaderboardEntry{
			UserID:   e.UserID,
			Username: e.Username,
			Score:    e.Score.InexactFloat64(),
		})
	}

	return entries
}
