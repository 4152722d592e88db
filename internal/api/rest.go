package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

func (a *API) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if !bind(c, &req) {
		return
	}

	role := domain.Role(req.Role)
	if role != "" && role != domain.RoleAdmin && role != domain.RoleUser {
		renderError(c, errors.InvalidInput("unknown role %q", req.Role))
		return
	}

	u, token, err := a.auth.Register(c.Request.Context(), auth.RegisterRequest{
		Username:   req.Username,
		Credential: req.Password,
		Role:       role,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{User: newUser(*u), Token: token})
}

func (a *API) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}

	u, token, err := a.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{User: newUser(*u), Token: token})
}

func (a *API) me(c *gin.Context) {
	c.JSON(http.StatusOK, newUser(*currentUser(c)))
}

func (a *API) logout(c *gin.Context) {
	if err := a.auth.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) listUsers(c *gin.Context) {
	if !currentUser(c).IsAdmin() {
		renderError(c, errors.Forbidden("only admins can list users"))
		return
	}

	users, err := a.repo.ListUsers(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	resp := make([]User, 0, len(users))
	for _, u := range users {
		resp = append(resp, newUser(u))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) createRoom(c *gin.Context) {
	u := currentUser(c)
	if !u.IsAdmin() {
		renderError(c, errors.Forbidden("only admins can create rooms"))
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if !bind(c, &req) {
		return
	}

	r := &domain.Room{
		Name:        req.Name,
		Description: req.Description,
		AdminID:     u.ID,
	}
	if err := a.repo.CreateRoom(c.Request.Context(), r); err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newRoom(*r))
}

// listRooms returns the rooms an admin owns, or the rooms a user is invited to.
func (a *API) listRooms(c *gin.Context) {
	u := currentUser(c)

	var (
		rooms []domain.Room
		err   error
	)
	if u.IsAdmin() {
		rooms, err = a.repo.ListRoomsByAdmin(c.Request.Context(), u.ID)
	} else {
		rooms, err = a.repo.ListRoomsByInvitee(c.Request.Context(), u.ID)
	}
	if err != nil {
		renderError(c, err)
		return
	}

	resp := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		resp = append(resp, newRoom(r))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) getRoom(c *gin.Context) {
	r, ok := a.visibleRoom(c, c.Param("id"))
	if !ok {
		return
	}

	c.JSON(http.StatusOK, newRoom(*r))
}

func (a *API) inviteUser(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}

	if _, ok := a.ownedRoom(c, c.Param("id")); !ok {
		return
	}

	r, err := a.repo.InviteUser(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRoom(*r))
}

func (a *API) listParticipants(c *gin.Context) {
	r, ok := a.visibleRoom(c, c.Param("id"))
	if !ok {
		return
	}

	participants := a.members.Participants(r.ID)
	if participants == nil {
		participants = []string{}
	}

	c.JSON(http.StatusOK, Participants{RoomID: r.ID, Participants: participants})
}

type createQuizRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Questions   []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer *int     `json:"correctAnswer"`
		TimeLimit     int      `json:"timeLimit"`
	} `json:"questions"`
}

func (req createQuizRequest) validate() error {
	if req.Title == "" {
		return errors.InvalidInput("title is required")
	}

	if len(req.Questions) == 0 {
		return errors.InvalidInput("at least one question is required")
	}

	for i, q := range req.Questions {
		switch {
		case q.Question == "":
			return errors.InvalidInput("question %d: prompt is required", i)
		case len(q.Options) < 2:
			return errors.InvalidInput("question %d: at least two options are required", i)
		case q.CorrectAnswer == nil:
			return errors.InvalidInput("question %d: correctAnswer is required", i)
		case *q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Options):
			return errors.InvalidInput("question %d: correctAnswer %d out of range", i, *q.CorrectAnswer)
		case q.TimeLimit < 0:
			return errors.InvalidInput("question %d: timeLimit must not be negative", i)
		}
	}

	return nil
}

func (a *API) createQuiz(c *gin.Context) {
	var req createQuizRequest
	if !bind(c, &req) {
		return
	}

	if err := req.validate(); err != nil {
		renderError(c, err)
		return
	}

	r, ok := a.ownedRoom(c, c.Param("id"))
	if !ok {
		return
	}

	q := &domain.Quiz{
		RoomID:      r.ID,
		Title:       req.Title,
		Description: req.Description,
		Questions:   make([]domain.Question, 0, len(req.Questions)),
	}
	for _, question := range req.Questions {
		q.Questions = append(q.Questions, domain.Question{
			Question:      question.Question,
			Options:       question.Options,
			CorrectAnswer: *question.CorrectAnswer,
			TimeLimit:     question.TimeLimit,
		})
	}

	if err := a.repo.CreateQuiz(c.Request.Context(), q); err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newQuiz(*q, true))
}

// listQuizzes shows answer keys to the room admin only.
func (a *API) listQuizzes(c *gin.Context) {
	r, ok := a.visibleRoom(c, c.Param("id"))
	if !ok {
		return
	}

	quizzes, err := a.repo.ListQuizzesByRoom(c.Request.Context(), r.ID)
	if err != nil {
		renderError(c, err)
		return
	}

	withAnswers := r.AdminID == currentUser(c).ID
	resp := make([]Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		resp = append(resp, newQuiz(q, withAnswers))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) getSession(c *gin.Context) {
	ss, err := a.sessions.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	if _, ok := a.visibleRoom(c, ss.RoomID); !ok {
		return
	}

	c.JSON(http.StatusOK, newSession(*ss))
}

func (a *API) getLeaderboard(c *gin.Context) {
	ss, err := a.sessions.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	if _, ok := a.visibleRoom(c, ss.RoomID); !ok {
		return
	}

	l, err := a.sessions.GetLeaderboard(c.Request.Context(), ss.SessionID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLeaderboard(*l))
}

// visibleRoom loads a room the caller administers or is invited to.
func (a *API) visibleRoom(c *gin.Context, id string) (*domain.Room, bool) {
	r, err := a.repo.GetRoom(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return nil, false
	}

	if u := currentUser(c); !r.CanJoin(u.ID) {
		renderError(c, errors.Forbidden("user %s has no access to room %s", u.ID, id))
		return nil, false
	}

	return r, true
}

// ownedRoom loads a room the caller administers.
func (a *API) ownedRoom(c *gin.Context, id string) (*domain.Room, bool) {
	r, err := a.repo.GetRoom(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return nil, false
	}

	if u := currentUser(c); r.AdminID != u.ID {
		renderError(c, errors.Forbidden("user %s is not the admin of room %s", u.ID, id))
		return nil, false
	}

	return r, true
}
