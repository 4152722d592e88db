package domain

const (
	EventNameParticipantJoined = "room.participant_joined"
	EventNameParticipantLeft   = "room.participant_left"
	EventNameSessionStarted    = "session.started"
	EventNameQuestionOpened    = "session.question_opened"
	EventNameAnswerRecorded    = "session.answer_recorded"
	EventNameSessionCompleted  = "session.completed"
)

// RoomEvents lists the events that are scoped to a single room channel.
var RoomEvents = []string{
	EventNameParticipantJoined,
	EventNameParticipantLeft,
	EventNameSessionStarted,
	EventNameQuestionOpened,
	EventNameAnswerRecorded,
	EventNameSessionCompleted,
}

type EventParticipantJoined struct {
	RoomID       string
	UserID       string
	Participants int
}

func (EventParticipantJoined) Name() string { return EventNameParticipantJoined }

func (e EventParticipantJoined) Room() string { return e.RoomID }

type EventParticipantLeft struct {
	RoomID       string
	UserID       string
	Participants int
}

func (EventParticipantLeft) Name() string { return EventNameParticipantLeft }

func (e EventParticipantLeft) Room() string { return e.RoomID }

type EventSessionStarted struct {
	Session SessionSnapshot
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

func (e EventSessionStarted) Room() string { return e.Session.RoomID }

type EventQuestionOpened struct {
	SessionID      string
	RoomID         string
	Question       PublicQuestion
	TotalQuestions int
}

func (EventQuestionOpened) Name() string { return EventNameQuestionOpened }

func (e EventQuestionOpened) Room() string { return e.RoomID }

// EventAnswerRecorded is published after an answer is accepted. It never
// carries the answer key.
type EventAnswerRecorded struct {
	RoomID        string
	QuestionIndex int
	IsCorrect     bool
	Score         Score
}

func (EventAnswerRecorded) Name() string { return EventNameAnswerRecorded }

func (e EventAnswerRecorded) Room() string { return e.RoomID }

type EventSessionCompleted struct {
	Session     SessionSnapshot
	Leaderboard Leaderboard
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

func (e EventSessionCompleted) Room() string { return e.Session.RoomID }
