package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/gateway"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/membership"
	"github.com/victornm/quizroom/internal/repository"
	"github.com/victornm/quizroom/internal/session"
)

type fixture struct {
	repo    *repository.Memory
	auth    *auth.Service
	tracker *membership.Tracker
	srv     *httptest.Server
}

func makeFixture(t *testing.T) *fixture {
	t.Helper()

	repo := repository.NewMemory(repository.Config{})
	tracker := membership.NewTracker()
	a := auth.NewService(auth.Config{Repository: repo})

	reg := session.NewRegistry(session.Config{
		Quizzes:      repo,
		Participants: tracker,
		Leaderboard:  leaderboard.NewService(leaderboard.Config{Users: repo}),
	})

	gw := gateway.New(gateway.Config{
		Auth:       a,
		Rooms:      repo,
		Membership: tracker,
		Sessions:   reg,
	})

	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	return &fixture{repo: repo, auth: a, tracker: tracker, srv: srv}
}

func (f *fixture) register(t *testing.T, name string, role domain.Role) (*domain.User, string) {
	t.Helper()

	u, token, err := f.auth.Register(context.Background(), auth.RegisterRequest{
		Username:   name,
		Credential: "secret",
		Role:       role,
	})
	require.NoError(t, err)
	return u, token
}

func (f *fixture) room(t *testing.T, admin string, invited ...string) *domain.Room {
	t.Helper()
	ctx := context.Background()

	r := &domain.Room{Name: "room", AdminID: admin}
	require.NoError(t, f.repo.CreateRoom(ctx, r))
	for _, u := range invited {
		_, err := f.repo.InviteUser(ctx, r.ID, u)
		require.NoError(t, err)
	}

	return r
}

func (f *fixture) quiz(t *testing.T, roomID string) *domain.Quiz {
	t.Helper()

	q := &domain.Quiz{
		RoomID: roomID,
		Title:  "capitals",
		Questions: []domain.Question{
			{Question: "Capital of France?", Options: []string{"Berlin", "Paris", "Rome"}, CorrectAnswer: 1},
			{Question: "Capital of Italy?", Options: []string{"Rome", "Madrid"}, CorrectAnswer: 0, TimeLimit: 20},
		},
	}
	require.NoError(t, f.repo.CreateQuiz(context.Background(), q))
	return q
}

func (f *fixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(f.url(token), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *fixture) url(token string) string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "?token=" + token
}

type frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, ev string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": ev, "data": data}))
}

// next returns the next frame of the connection.
func next(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(b, &f))
	return f
}

// expect skips frames until one with the given event arrives.
func expect(t *testing.T, conn *websocket.Conn, ev string) map[string]any {
	t.Helper()

	for {
		f := next(t, conn)
		if f.Event == ev {
			return f.Data
		}
		require.NotEqual(t, gateway.EventError, f.Event, "unexpected error frame while waiting for %s: %v", ev, f.Data)
	}
}

func TestGateway_QuizFlow(t *testing.T) {
	f := makeFixture(t)
	admin, adminToken := f.register(t, "admin", domain.RoleAdmin)
	user, userToken := f.register(t, "alice", domain.RoleUser)
	room := f.room(t, admin.ID, user.ID)
	quiz := f.quiz(t, room.ID)

	a := f.dial(t, adminToken)
	u := f.dial(t, userToken)

	send(t, a, gateway.EventJoinRoom, map[string]any{"roomId": room.ID, "userId": admin.ID})
	joined := expect(t, a, gateway.EventUserJoined)
	assert.Equal(t, float64(1), joined["participants"])
	assert.Equal(t, admin.ID, joined["newUser"])

	send(t, u, gateway.EventJoinRoom, map[string]any{"roomId": room.ID, "userId": user.ID})
	joined = expect(t, a, gateway.EventUserJoined)
	assert.Equal(t, float64(2), joined["participants"])
	assert.Equal(t, user.ID, joined["newUser"])
	expect(t, u, gateway.EventUserJoined)

	send(t, a, gateway.EventStartQuiz, map[string]any{"quizId": quiz.ID, "roomId": room.ID})
	started := expect(t, u, gateway.EventQuizStarted)
	assert.Equal(t, quiz.ID, started["quizId"])
	assert.Equal(t, float64(2), started["totalQuestions"])
	sessionID, _ := started["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	expect(t, a, gateway.EventQuizStarted)

	send(t, a, gateway.EventNextQuestion, map[string]any{"sessionId": sessionID, "questionIndex": 0})
	update := expect(t, u, gateway.EventQuestionUpdate)
	assert.Equal(t, float64(1), update["questionNumber"])
	assert.Equal(t, float64(2), update["totalQuestions"])
	q, _ := update["question"].(map[string]any)
	require.NotNil(t, q)
	assert.Equal(t, float64(0), q["index"])
	assert.Equal(t, "Capital of France?", q["question"])
	assert.Equal(t, float64(domain.DefaultTimeLimit), q["timeLimit"])
	assert.NotContains(t, q, "correctAnswer", "participants should never see the answer key")
	expect(t, a, gateway.EventQuestionUpdate)

	send(t, u, gateway.EventSubmitAnswer, map[string]any{
		"sessionId":     sessionID,
		"questionIndex": 0,
		"answer":        1,
		"timeTaken":     100,
	})
	result := expect(t, u, gateway.EventAnswerResult)
	assert.Equal(t, true, result["isCorrect"])
	assert.Equal(t, float64(1), result["correctAnswer"])
	assert.Equal(t, float64(900), result["score"])
	assert.Equal(t, float64(900), result["totalScore"])

	submitted := expect(t, a, gateway.EventAnswerSubmitted)
	assert.Equal(t, user.ID, submitted["userId"])
	assert.Equal(t, "alice", submitted["username"])
	assert.Equal(t, true, submitted["isCorrect"])
	assert.NotContains(t, submitted, "correctAnswer")
	assert.NotContains(t, submitted, "answer")

	send(t, u, gateway.EventGetLeaderboard, map[string]any{"sessionId": sessionID})
	lb := expect(t, u, gateway.EventLeaderboard)
	entries, _ := lb["leaderboard"].([]any)
	require.Len(t, entries, 2)

	send(t, a, gateway.EventNextQuestion, map[string]any{"sessionId": sessionID, "questionIndex": 1})
	update = expect(t, a, gateway.EventQuestionUpdate)
	assert.Equal(t, float64(2), update["questionNumber"])

	send(t, a, gateway.EventNextQuestion, map[string]any{"sessionId": sessionID, "questionIndex": 2})
	done := expect(t, u, gateway.EventQuizCompleted)
	assert.Equal(t, sessionID, done["sessionId"])
	entries, _ = done["leaderboard"].([]any)
	require.Len(t, entries, 2)
	top, _ := entries[0].(map[string]any)
	assert.Equal(t, user.ID, top["userId"])
	assert.Equal(t, "alice", top["username"])
	assert.Equal(t, float64(900), top["score"])
}

func TestGateway_Unauthenticated(t *testing.T) {
	f := makeFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url("bogus"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unauthenticated", body["code"])
}

func TestGateway_ErrorsAreScoped(t *testing.T) {
	f := makeFixture(t)
	admin, adminToken := f.register(t, "admin", domain.RoleAdmin)
	user, userToken := f.register(t, "alice", domain.RoleUser)
	_, strangerToken := f.register(t, "mallory", domain.RoleUser)
	room := f.room(t, admin.ID, user.ID)
	quiz := f.quiz(t, room.ID)

	a := f.dial(t, adminToken)
	u := f.dial(t, userToken)
	s := f.dial(t, strangerToken)

	send(t, a, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, a, gateway.EventUserJoined)
	send(t, u, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, u, gateway.EventUserJoined)
	expect(t, a, gateway.EventUserJoined)

	tests := map[string]struct {
		conn  *websocket.Conn
		raw   string
		ev    string
		data  any
		event string
		code  string
	}{
		"malformed frame": {
			conn: u,
			raw:  "{not json",
			code: "invalid_input",
		},
		"unknown event": {
			conn:  u,
			ev:    "dance",
			data:  map[string]any{},
			event: "dance",
			code:  "invalid_input",
		},
		"missing data": {
			conn:  u,
			ev:    gateway.EventJoinRoom,
			event: gateway.EventJoinRoom,
			code:  "invalid_input",
		},
		"join a missing room": {
			conn:  u,
			ev:    gateway.EventJoinRoom,
			data:  map[string]any{"roomId": "missing"},
			event: gateway.EventJoinRoom,
			code:  "not_found",
		},
		"join without an invite": {
			conn:  s,
			ev:    gateway.EventJoinRoom,
			data:  map[string]any{"roomId": room.ID},
			event: gateway.EventJoinRoom,
			code:  "forbidden",
		},
		"join as someone else": {
			conn:  s,
			ev:    gateway.EventJoinRoom,
			data:  map[string]any{"roomId": room.ID, "userId": user.ID},
			event: gateway.EventJoinRoom,
			code:  "forbidden",
		},
		"start quiz as a participant": {
			conn:  u,
			ev:    gateway.EventStartQuiz,
			data:  map[string]any{"quizId": quiz.ID, "roomId": room.ID},
			event: gateway.EventStartQuiz,
			code:  "forbidden",
		},
		"start a missing quiz": {
			conn:  a,
			ev:    gateway.EventStartQuiz,
			data:  map[string]any{"quizId": "missing", "roomId": room.ID},
			event: gateway.EventStartQuiz,
			code:  "not_found",
		},
		"advance a missing session": {
			conn:  a,
			ev:    gateway.EventNextQuestion,
			data:  map[string]any{"sessionId": "missing", "questionIndex": 0},
			event: gateway.EventNextQuestion,
			code:  "not_found",
		},
		"submit to a missing session": {
			conn:  u,
			ev:    gateway.EventSubmitAnswer,
			data:  map[string]any{"sessionId": "missing", "questionIndex": 0, "answer": 1, "timeTaken": 1},
			event: gateway.EventSubmitAnswer,
			code:  "not_found",
		},
		"leaderboard of a missing session": {
			conn:  u,
			ev:    gateway.EventGetLeaderboard,
			data:  map[string]any{"sessionId": "missing"},
			event: gateway.EventGetLeaderboard,
			code:  "not_found",
		},
		"leave a room the connection is not in": {
			conn:  s,
			ev:    gateway.EventLeaveRoom,
			data:  map[string]any{"roomId": room.ID},
			event: gateway.EventLeaveRoom,
			code:  "invalid_input",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if tc.raw != "" {
				require.NoError(t, tc.conn.WriteMessage(websocket.TextMessage, []byte(tc.raw)))
			} else {
				send(t, tc.conn, tc.ev, tc.data)
			}

			got := next(t, tc.conn)
			require.Equal(t, gateway.EventError, got.Event)
			assert.Equal(t, tc.event, got.Data["event"])
			assert.Equal(t, tc.code, got.Data["code"])
			assert.NotEmpty(t, got.Data["message"])
		})
	}

	// Nothing was broadcast: the next frame the admin sees is its own reply.
	send(t, a, gateway.EventGetLeaderboard, map[string]any{"sessionId": "missing"})
	got := next(t, a)
	assert.Equal(t, gateway.EventError, got.Event)
	assert.Equal(t, gateway.EventGetLeaderboard, got.Data["event"])
	assert.Equal(t, 2, f.tracker.Count(room.ID))
}

func TestGateway_SubmitRejections(t *testing.T) {
	f := makeFixture(t)
	admin, adminToken := f.register(t, "admin", domain.RoleAdmin)
	user, userToken := f.register(t, "alice", domain.RoleUser)
	late, lateToken := f.register(t, "bob", domain.RoleUser)
	room := f.room(t, admin.ID, user.ID, late.ID)
	quiz := f.quiz(t, room.ID)

	a := f.dial(t, adminToken)
	u := f.dial(t, userToken)

	send(t, a, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, a, gateway.EventUserJoined)
	send(t, u, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, u, gateway.EventUserJoined)

	send(t, a, gateway.EventStartQuiz, map[string]any{"quizId": quiz.ID, "roomId": room.ID})
	sessionID, _ := expect(t, u, gateway.EventQuizStarted)["sessionId"].(string)
	send(t, a, gateway.EventNextQuestion, map[string]any{"sessionId": sessionID, "questionIndex": 0})
	expect(t, u, gateway.EventQuestionUpdate)

	answer := map[string]any{"sessionId": sessionID, "questionIndex": 0, "answer": 0, "timeTaken": 10}

	send(t, u, gateway.EventSubmitAnswer, answer)
	result := expect(t, u, gateway.EventAnswerResult)
	assert.Equal(t, false, result["isCorrect"])
	assert.Equal(t, float64(0), result["score"])

	send(t, u, gateway.EventSubmitAnswer, answer)
	got := expect(t, u, gateway.EventError)
	assert.Equal(t, "conflict", got["code"])

	// A user joining after the session was created is not a participant.
	l := f.dial(t, lateToken)
	send(t, l, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, l, gateway.EventUserJoined)
	send(t, l, gateway.EventSubmitAnswer, answer)
	got = expect(t, l, gateway.EventError)
	assert.Equal(t, "forbidden", got["code"])

	send(t, u, gateway.EventSubmitAnswer, map[string]any{"sessionId": sessionID, "questionIndex": 1, "answer": 0, "timeTaken": 10})
	got = expect(t, u, gateway.EventError)
	assert.Equal(t, "invalid_input", got["code"], "question 1 is not open yet")
}

func TestGateway_LeaveAndDisconnect(t *testing.T) {
	f := makeFixture(t)
	admin, adminToken := f.register(t, "admin", domain.RoleAdmin)
	user, userToken := f.register(t, "alice", domain.RoleUser)
	room := f.room(t, admin.ID, user.ID)
	other := f.room(t, admin.ID, user.ID)

	a := f.dial(t, adminToken)
	send(t, a, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, a, gateway.EventUserJoined)

	u := f.dial(t, userToken)
	send(t, u, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, a, gateway.EventUserJoined)
	expect(t, u, gateway.EventUserJoined)

	// Joining another room leaves the current one first.
	send(t, u, gateway.EventJoinRoom, map[string]any{"roomId": other.ID})
	left := expect(t, a, gateway.EventUserLeft)
	assert.Equal(t, float64(1), left["participants"])
	assert.Equal(t, user.ID, left["leftUser"])
	expect(t, u, gateway.EventUserJoined)
	assert.Equal(t, []string{admin.ID}, f.tracker.Participants(room.ID))
	assert.Equal(t, []string{user.ID}, f.tracker.Participants(other.ID))

	// Frames of one connection run in order, so the reply to the second frame
	// means the leave has been applied.
	send(t, u, gateway.EventLeaveRoom, map[string]any{"roomId": other.ID})
	send(t, u, gateway.EventLeaveRoom, map[string]any{"roomId": other.ID})
	got := expect(t, u, gateway.EventError)
	assert.Equal(t, "invalid_input", got["code"])
	assert.Zero(t, f.tracker.Count(other.ID))

	send(t, u, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, a, gateway.EventUserJoined)

	require.NoError(t, u.Close())
	left = expect(t, a, gateway.EventUserLeft)
	assert.Equal(t, float64(1), left["participants"])
	assert.Equal(t, user.ID, left["leftUser"])
	assert.Equal(t, []string{admin.ID}, f.tracker.Participants(room.ID))
}

func TestGateway_SameUserOnTwoConnections(t *testing.T) {
	f := makeFixture(t)
	admin, adminToken := f.register(t, "admin", domain.RoleAdmin)
	user, userToken := f.register(t, "alice", domain.RoleUser)
	room := f.room(t, admin.ID, user.ID)
	quiz := f.quiz(t, room.ID)

	a := f.dial(t, adminToken)
	send(t, a, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, a, gateway.EventUserJoined)

	phone := f.dial(t, userToken)
	send(t, phone, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	expect(t, phone, gateway.EventUserJoined)
	expect(t, a, gateway.EventUserJoined)

	laptop := f.dial(t, userToken)
	send(t, laptop, gateway.EventJoinRoom, map[string]any{"roomId": room.ID})
	joined := expect(t, laptop, gateway.EventUserJoined)
	assert.Equal(t, float64(2), joined["participants"])
	expect(t, a, gateway.EventUserJoined)

	send(t, phone, gateway.EventLeaveRoom, map[string]any{"roomId": room.ID})
	send(t, phone, gateway.EventLeaveRoom, map[string]any{"roomId": room.ID})
	expect(t, phone, gateway.EventError)
	assert.ElementsMatch(t, []string{admin.ID, user.ID}, f.tracker.Participants(room.ID))

	// The room saw no user-left, so the admin's next frame is the quiz start.
	send(t, a, gateway.EventStartQuiz, map[string]any{"quizId": quiz.ID, "roomId": room.ID})
	started := next(t, a)
	require.Equal(t, gateway.EventQuizStarted, started.Event)
	sessionID, _ := started.Data["sessionId"].(string)

	send(t, a, gateway.EventNextQuestion, map[string]any{"sessionId": sessionID, "questionIndex": 0})
	expect(t, laptop, gateway.EventQuestionUpdate)

	send(t, laptop, gateway.EventSubmitAnswer, map[string]any{
		"sessionId":     sessionID,
		"questionIndex": 0,
		"answer":        1,
		"timeTaken":     0,
	})
	result := expect(t, laptop, gateway.EventAnswerResult)
	assert.Equal(t, float64(1000), result["score"])

	require.NoError(t, laptop.Close())
	left := expect(t, a, gateway.EventUserLeft)
	assert.Equal(t, user.ID, left["leftUser"])
	assert.Equal(t, float64(1), left["participants"])
	assert.Equal(t, []string{admin.ID}, f.tracker.Participants(room.ID))
}
