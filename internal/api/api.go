package api

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/session"
)

type Repository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateRoom(ctx context.Context, r *domain.Room) error
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	ListRoomsByAdmin(ctx context.Context, adminID string) ([]domain.Room, error)
	ListRoomsByInvitee(ctx context.Context, userID string) ([]domain.Room, error)
	InviteUser(ctx context.Context, roomID, userID string) (*domain.Room, error)
	CreateQuiz(ctx context.Context, q *domain.Quiz) error
	ListQuizzesByRoom(ctx context.Context, roomID string) ([]domain.Quiz, error)
}

type Membership interface {
	Participants(roomID string) []string
}

type Config struct {
	Auth       *auth.Service
	Repository Repository
	Membership Membership
	Sessions   *session.Registry
}

// API serves the REST surface over gin and the read-only session service over gRPC.
type API struct {
	auth     *auth.Service
	repo     Repository
	members  Membership
	sessions *session.Registry
}

func New(c Config) *API {
	return &API{
		auth:     c.Auth,
		repo:     c.Repository,
		members:  c.Membership,
		sessions: c.Sessions,
	}
}

// Register mounts the REST routes under /api.
func (a *API) Register(e *gin.Engine) {
	r := e.Group("/api")

	r.POST("/auth/register", a.register)
	r.POST("/auth/login", a.login)

	authed := r.Group("", a.authenticate)
	authed.GET("/auth/me", a.me)
	authed.POST("/auth/logout", a.logout)

	authed.GET("/users", a.listUsers)

	authed.POST("/rooms", a.createRoom)
	authed.GET("/rooms", a.listRooms)
	authed.GET("/rooms/:id", a.getRoom)
	authed.POST("/rooms/:id/invite", a.inviteUser)
	authed.GET("/rooms/:id/participants", a.listParticipants)
	authed.POST("/rooms/:id/quizzes", a.createQuiz)
	authed.GET("/rooms/:id/quizzes", a.listQuizzes)

	authed.GET("/sessions/:id", a.getSession)
	authed.GET("/sessions/:id/leaderboard", a.getLeaderboard)
}

// RegisterGRPC registers the session service.
func (a *API) RegisterGRPC(s *grpc.Server) {
	s.RegisterService(&sessionServiceDesc, &sessionServer{sessions: a.sessions})
}

const (
	userKey  = "api.user"
	tokenKey = "api.token"
)

// authenticate resolves the caller from "Authorization: Bearer <token>" or
// the "token" query parameter.
func (a *API) authenticate(c *gin.Context) {
	token := c.Query("token")
	if t, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		token = strings.TrimSpace(t)
	}

	u, err := a.auth.ResolveUser(c.Request.Context(), token)
	if err != nil {
		renderError(c, err)
		return
	}

	c.Set(userKey, u)
	c.Set(tokenKey, token)
	c.Next()
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResponse{
		Code:    e.Code.String(),
		Message: e.Message,
	})
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		renderError(c, errors.InvalidInput("invalid request body: %v", err))
		return false
	}

	return true
}
