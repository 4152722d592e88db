package api

import (
	"time"

	"github.com/victornm/quizroom/internal/domain"
)

type (
	User struct {
		ID         string    `json:"id"`
		Username   string    `json:"username"`
		Role       string    `json:"role"`
		CreateTime time.Time `json:"createTime"`
	}

	AuthResponse struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}

	Room struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Description  string    `json:"description"`
		AdminID      string    `json:"adminId"`
		InvitedUsers []string  `json:"invitedUsers"`
		CreateTime   time.Time `json:"createTime"`
	}

	Participants struct {
		RoomID       string   `json:"roomId"`
		Participants []string `json:"participants"`
	}

	Quiz struct {
		ID          string     `json:"id"`
		RoomID      string     `json:"roomId"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Questions   []Question `json:"questions"`
		CreateTime  time.Time  `json:"createTime"`
	}

	// Question is rendered with CorrectAnswer for the room admin only.
	Question struct {
		Index         int      `json:"index"`
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		TimeLimit     int      `json:"timeLimit"`
		CorrectAnswer *int     `json:"correctAnswer,omitempty"`
	}

	Session struct {
		SessionID            string     `json:"sessionId"`
		QuizID               string     `json:"quizId"`
		RoomID               string     `json:"roomId"`
		CurrentQuestionIndex int        `json:"currentQuestionIndex"`
		TotalQuestions       int        `json:"totalQuestions"`
		Status               string     `json:"status"`
		StartTime            *time.Time `json:"startTime,omitempty"`
		CompleteTime         *time.Time `json:"completeTime,omitempty"`
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
)

func newUser(u domain.User) User {
	return User{
		ID:         u.ID,
		Username:   u.Username,
		Role:       string(u.Role),
		CreateTime: u.CreateTime,
	}
}

func newRoom(r domain.Room) Room {
	invited := r.InvitedUsers
	if invited == nil {
		invited = []string{}
	}

	return Room{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		AdminID:      r.AdminID,
		InvitedUsers: invited,
		CreateTime:   r.CreateTime,
	}
}

func newQuiz(q domain.Quiz, withAnswers bool) Quiz {
	questions := make([]Question, 0, len(q.Questions))
	for i, question := range q.Questions {
		p := question.Public(i)
		dto := Question{
			Index:     p.Index,
			Question:  p.Question,
			Options:   p.Options,
			TimeLimit: p.TimeLimit,
		}
		if withAnswers {
			dto.CorrectAnswer = &question.CorrectAnswer
		}
		questions = append(questions, dto)
	}

	return Quiz{
		ID:          q.ID,
		RoomID:      q.RoomID,
		Title:       q.Title,
		Description: q.Description,
		Questions:   questions,
		CreateTime:  q.CreateTime,
	}
}

func newSession(ss domain.SessionSnapshot) Session {
	return Session{
		SessionID:            ss.SessionID,
		QuizID:               ss.QuizID,
		RoomID:               ss.RoomID,
		CurrentQuestionIndex: ss.CurrentQuestionIndex,
		TotalQuestions:       ss.TotalQuestions,
		Status:               string(ss.Status),
		StartTime:            ss.StartTime,
		CompleteTime:         ss.CompleteTime,
	}
}

func newLeaderboard(l domain.Leaderboard) Leaderboard {
	entries := make([]LeaderboardEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, LeaderboardEntry{
			UserID:   e.UserID,
			Username: e.Username,
			Score:    e.Score.InexactFloat64(),
		})
	}

	return Leaderboard{
		SessionID:   l.SessionID,
		Leaderboard: entries,
	}
}
