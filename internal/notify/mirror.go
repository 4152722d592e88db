// Package notify mirrors room notifications to Redis pub/sub so that listeners
// outside the process can follow a room without holding a websocket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/event"
)

const maxConcurrent = 100

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type Config struct {
	EventBus *event.Bus
	Redis    Redis
	Prefix   string
}

// Mirror publishes every room-scoped domain event to "<prefix>:room:<roomID>".
// The final leaderboard is also sent to "<prefix>:user:<userID>" of every ranked user.
type Mirror struct {
	redis  Redis
	prefix string
}

func New(c Config) *Mirror {
	m := &Mirror{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	c.EventBus.Subscribe(m.Handle, domain.RoomEvents...)
	return m
}

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Participants struct {
		RoomID       string `json:"roomId"`
		UserID       string `json:"userId"`
		Participants int    `json:"participants"`
	}

	SessionStarted struct {
		SessionID      string `json:"sessionId"`
		QuizID         string `json:"quizId"`
		TotalQuestions int    `json:"totalQuestions"`
	}

	QuestionOpened struct {
		SessionID      string   `json:"sessionId"`
		Index          int      `json:"index"`
		Question       string   `json:"question"`
		Options        []string `json:"options"`
		TimeLimit      int      `json:"timeLimit"`
		QuestionNumber int      `json:"questionNumber"`
		TotalQuestions int      `json:"totalQuestions"`
	}

	AnswerRecorded struct {
		SessionID     string `json:"sessionId"`
		UserID        string `json:"userId"`
		QuestionIndex int    `json:"questionIndex"`
		IsCorrect     bool   `json:"isCorrect"`
		TotalScore    string `json:"totalScore"`
	}

	Leaderboard struct {
		SessionID string             `json:"sessionId"`
		Entries   []LeaderboardEntry `json:"leaderboard"`
	}

	LeaderboardEntry struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
		Score    string `json:"score"`
	}
)

// Handle publishes one event. It is subscribed to the bus by New.
func (m *Mirror) Handle(ctx context.Context, e event.Event) error {
	switch e := e.(type) {
	case domain.EventParticipantJoined:
		return m.publish(ctx, m.room(e.RoomID), e.Name(), Participants(e))

	case domain.EventParticipantLeft:
		return m.publish(ctx, m.room(e.RoomID), e.Name(), Participants(e))

	case domain.EventSessionStarted:
		return m.publish(ctx, m.room(e.Room()), e.Name(), SessionStarted{
			SessionID:      e.Session.SessionID,
			QuizID:         e.Session.QuizID,
			TotalQuestions: e.Session.TotalQuestions,
		})

	case domain.EventQuestionOpened:
		return m.publish(ctx, m.room(e.RoomID), e.Name(), QuestionOpened{
			SessionID:      e.SessionID,
			Index:          e.Question.Index,
			Question:       e.Question.Question,
			Options:        e.Question.Options,
			TimeLimit:      e.Question.TimeLimit,
			QuestionNumber: e.Question.Index + 1,
			TotalQuestions: e.TotalQuestions,
		})

	case domain.EventAnswerRecorded:
		return m.publish(ctx, m.room(e.RoomID), e.Name(), AnswerRecorded{
			SessionID:     e.Score.SessionID,
			UserID:        e.Score.UserID,
			QuestionIndex: e.QuestionIndex,
			IsCorrect:     e.IsCorrect,
			TotalScore:    e.Score.TotalScore.String(),
		})

	case domain.EventSessionCompleted:
		return m.publishCompleted(ctx, e)

	default:
		return fmt.Errorf("notify: unexpected event %s", e.Name())
	}
}

func (m *Mirror) publishCompleted(ctx context.Context, e domain.EventSessionCompleted) error {
	l := e.Leaderboard

	data := Leaderboard{
		SessionID: l.SessionID,
		Entries:   make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			UserID:   entry.UserID,
			Username: entry.Username,
			Score:    entry.Score.String(),
		})
	}

	if err := m.publish(ctx, m.room(e.Room()), e.Name(), data); err != nil {
		return err
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return m.publish(ctx, m.user(entry.UserID), e.Name(), data)
		})
	}

	return eg.Wait()
}

func (m *Mirror) publish(ctx context.Context, channel, ev string, data any) error {
	n := Notification{
		Event: ev,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %v", ev, err)
	}

	return m.redis.Publish(ctx, channel, b).Err()
}

func (m *Mirror) room(id string) string {
	return fmt.Sprintf("%s:room:%s", m.prefix, id)
}

func (m *Mirror) user(id string) string {
	return fmt.Sprintf("%s:user:%s", m.prefix, id)
}
