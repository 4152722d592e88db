package gateway

import (
	"context"
	"encoding/json"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/session"
)

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, errors.InvalidInput("data is required")
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.InvalidInput("malformed data: %v", err)
	}

	return v, nil
}

func (g *Gateway) joinRoom(ctx context.Context, c *client, data json.RawMessage) error {
	req, err := decode[JoinRoomRequest](data)
	if err != nil {
		return err
	}

	if req.RoomID == "" {
		return errors.InvalidInput("roomId is required")
	}

	if req.UserID != "" && req.UserID != c.user.ID {
		return errors.Forbidden("connection is authenticated as %s, cannot join as %s", c.user.ID, req.UserID)
	}

	room, err := g.rooms.GetRoom(ctx, req.RoomID)
	if err != nil {
		return err
	}

	if !room.CanJoin(c.user.ID) {
		return errors.Forbidden("user %s is not invited to room %s", c.user.ID, room.ID)
	}

	if prev := c.Room(); prev != "" && prev != room.ID {
		g.leave(ctx, c, prev)
	}

	c.setRoom(room.ID)
	g.hub.Subscribe(room.ID, c)
	n := g.presence.join(room.ID, c.user.ID, c.id)

	g.broadcast(ctx, room.ID, EventUserJoined, UserJoined{
		Participants: n,
		NewUser:      c.user.ID,
	})
	g.publish(ctx, domain.EventParticipantJoined{
		RoomID:       room.ID,
		UserID:       c.user.ID,
		Participants: n,
	})

	return nil
}

func (g *Gateway) leaveRoom(ctx context.Context, c *client, data json.RawMessage) error {
	req, err := decode[LeaveRoomRequest](data)
	if err != nil {
		return err
	}

	if req.RoomID == "" {
		return errors.InvalidInput("roomId is required")
	}

	if c.Room() != req.RoomID {
		return errors.InvalidInput("connection is not in room %s", req.RoomID)
	}

	g.leave(ctx, c, req.RoomID)
	return nil
}

// disconnect releases the connection's room association, if any.
func (g *Gateway) disconnect(ctx context.Context, c *client) {
	if room := c.Room(); room != "" {
		g.leave(ctx, c, room)
	}
}

func (g *Gateway) leave(ctx context.Context, c *client, roomID string) {
	g.hub.Unsubscribe(roomID, c)
	c.setRoom("")

	n, last := g.presence.leave(roomID, c.user.ID, c.id)
	if !last {
		return
	}

	g.broadcast(ctx, roomID, EventUserLeft, UserLeft{
		Participants: n,
		LeftUser:     c.user.ID,
	})
	g.publish(ctx, domain.EventParticipantLeft{
		RoomID:       roomID,
		UserID:       c.user.ID,
		Participants: n,
	})
}

func (g *Gateway) startQuiz(ctx context.Context, c *client, data json.RawMessage) error {
	req, err := decode[StartQuizRequest](data)
	if err != nil {
		return err
	}

	if req.QuizID == "" || req.RoomID == "" {
		return errors.InvalidInput("quizId and roomId are required")
	}

	if err := g.requireRoomAdmin(ctx, c, req.RoomID); err != nil {
		return err
	}

	ss, err := g.sessions.CreateSession(ctx, session.CreateSessionRequest{
		QuizID: req.QuizID,
		RoomID: req.RoomID,
	})
	if err != nil {
		return err
	}

	ss, err = g.sessions.Activate(ctx, ss.SessionID)
	if err != nil {
		return err
	}

	g.broadcast(ctx, ss.RoomID, EventQuizStarted, QuizStarted{
		SessionID:      ss.SessionID,
		QuizID:         ss.QuizID,
		TotalQuestions: ss.TotalQuestions,
	})

	return nil
}

func (g *Gateway) nextQuestion(ctx context.Context, c *client, data json.RawMessage) error {
	req, err := decode[NextQuestionRequest](data)
	if err != nil {
		return err
	}

	if req.SessionID == "" || req.QuestionIndex == nil {
		return errors.InvalidInput("sessionId and questionIndex are required")
	}

	s, err := g.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return err
	}

	if err := g.requireRoomAdmin(ctx, c, s.RoomID()); err != nil {
		return err
	}

	resp, err := g.sessions.Advance(ctx, session.AdvanceRequest{
		SessionID:     req.SessionID,
		QuestionIndex: *req.QuestionIndex,
	})
	if err != nil {
		return err
	}

	if resp.Leaderboard != nil {
		g.broadcast(ctx, s.RoomID(), EventQuizCompleted, QuizCompleted{
			SessionID:   s.ID(),
			Leaderboard: newLeaderboardEntries(resp.Leaderboard),
		})
		return nil
	}

	g.broadcast(ctx, s.RoomID(), EventQuestionUpdate, QuestionUpdate{
		SessionID:      s.ID(),
		Question:       newQuestion(*resp.Question),
		QuestionNumber: resp.Question.Index + 1,
		TotalQuestions: resp.TotalQuestions,
	})

	return nil
}

func (g *Gateway) submitAnswer(ctx context.Context, c *client, data json.RawMessage) error {
	req, err := decode[SubmitAnswerRequest](data)
	if err != nil {
		return err
	}

	if req.SessionID == "" || req.QuestionIndex == nil || req.Answer == nil {
		return errors.InvalidInput("sessionId, questionIndex and answer are required")
	}

	resp, err := g.sessions.SubmitAnswer(ctx, session.SubmitAnswerRequest{
		SessionID: req.SessionID,
		Submission: session.Submission{
			UserID:        c.user.ID,
			QuestionIndex: *req.QuestionIndex,
			Answer:        *req.Answer,
			TimeTaken:     req.TimeTaken,
		},
	})
	if err != nil {
		return err
	}

	g.send(ctx, c, EventAnswerResult, AnswerResult{
		SessionID:     req.SessionID,
		QuestionIndex: resp.QuestionIndex,
		IsCorrect:     resp.IsCorrect,
		CorrectAnswer: resp.CorrectAnswer,
		Score:         resp.Score.InexactFloat64(),
		TotalScore:    resp.TotalScore.InexactFloat64(),
	})

	g.broadcast(ctx, resp.RoomID, EventAnswerSubmitted, AnswerSubmitted{
		SessionID:     req.SessionID,
		UserID:        c.user.ID,
		Username:      c.user.Username,
		QuestionIndex: resp.QuestionIndex,
		IsCorrect:     resp.IsCorrect,
	})

	return nil
}

func (g *Gateway) getLeaderboard(ctx context.Context, c *client, data json.RawMessage) error {
	req, err := decode[GetLeaderboardRequest](data)
	if err != nil {
		return err
	}

	if req.SessionID == "" {
		return errors.InvalidInput("sessionId is required")
	}

	l, err := g.sessions.GetLeaderboard(ctx, req.SessionID)
	if err != nil {
		return err
	}

	g.send(ctx, c, EventLeaderboard, Leaderboard{
		SessionID:   l.SessionID,
		Leaderboard: newLeaderboardEntries(l),
	})

	return nil
}

func (g *Gateway) requireRoomAdmin(ctx context.Context, c *client, roomID string) error {
	room, err := g.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if room.AdminID != c.user.ID {
		return errors.Forbidden("user %s is not the admin of room %s", c.user.ID, roomID)
	}

	return nil
}
