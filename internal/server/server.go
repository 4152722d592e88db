package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/quizroom/internal/api"
	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/gateway"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/membership"
	"github.com/victornm/quizroom/internal/metrics"
	"github.com/victornm/quizroom/internal/notify"
	"github.com/victornm/quizroom/internal/repository"
	"github.com/victornm/quizroom/internal/score"
	"github.com/victornm/quizroom/internal/session"
	"github.com/victornm/quizroom/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level string
	}

	Redis struct {
		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Gateway struct {
		SendQueue    int
		PingInterval time.Duration
		ReadTimeout  time.Duration
	}

	Scoring struct {
		Base        int64
		SpeedWindow int64
	}
}

// DefaultConfig returns the values used for anything the config file leaves out.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Log.Level = "info"
	c.Redis.Pubsub.Prefix = "quizroom"
	c.Gateway.SendQueue = 256
	c.Gateway.PingInterval = 54 * time.Second
	c.Gateway.ReadTimeout = 60 * time.Second
	c.Scoring.Base = score.DefaultBase.IntPart()
	c.Scoring.SpeedWindow = score.DefaultSpeedWindow.IntPart()
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		repo  *repository.Memory
		redis redis.UniversalClient
	}

	service struct {
		auth        *auth.Service
		membership  *membership.Tracker
		leaderboard *leaderboard.Service
		sessions    *session.Registry
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(event.Config{})
	metrics.Observe(s.eb)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	s.infra.repo = repository.NewMemory(repository.Config{})

	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	return nil
}

// initRedis connects the notification mirror. It is skipped when no address is configured.
func (s *Server) initRedis() error {
	rc := s.c.Redis.Pubsub
	if len(rc.Addrs) == 0 {
		slog.Info("server: redis pubsub not configured, notification mirror disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    rc.Addrs,
		Password: rc.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initService() {
	s.service.auth = auth.NewService(auth.Config{
		Repository: s.infra.repo,
	})

	s.service.membership = membership.NewTracker()

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Users: s.infra.repo,
	})

	s.service.sessions = session.NewRegistry(session.Config{
		Quizzes:      s.infra.repo,
		Participants: s.service.membership,
		Leaderboard:  s.service.leaderboard,
		EventBus:     s.eb,
		Scoring: score.Config{
			Base:        decimal.NewFromInt(s.c.Scoring.Base),
			SpeedWindow: decimal.NewFromInt(s.c.Scoring.SpeedWindow),
		},
	})

	if s.infra.redis != nil {
		notify.New(notify.Config{
			EventBus: s.eb,
			Redis:    s.infra.redis,
			Prefix:   s.c.Redis.Pubsub.Prefix,
		})
	}
}

func (s *Server) initAPI() {
	gin.SetMode(gin.ReleaseMode)

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	e.Use(gin.Recovery(), telemetry.HTTPLogger())

	a := api.New(api.Config{
		Auth:       s.service.auth,
		Repository: s.infra.repo,
		Membership: s.service.membership,
		Sessions:   s.service.sessions,
	})
	a.Register(e)

	gw := gateway.New(gateway.Config{
		Auth:         s.service.auth,
		Rooms:        s.infra.repo,
		Membership:   s.service.membership,
		Sessions:     s.service.sessions,
		EventBus:     s.eb,
		SendQueue:    s.c.Gateway.SendQueue,
		PingInterval: s.c.Gateway.PingInterval,
		ReadTimeout:  s.c.Gateway.ReadTimeout,
	})
	e.GET("/ws", gin.WrapH(gw))

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	a.RegisterGRPC(s.grpc)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// Shutdown stops accepting requests, then drains the event bus so that pending
// notifications are mirrored before Redis is closed.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
