package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/session"
)

const (
	SessionServiceName      = "quizroom.v1.SessionService"
	GetSessionMethod        = "/" + SessionServiceName + "/GetSession"
	GetLeaderboardMethod    = "/" + SessionServiceName + "/GetLeaderboard"
	sessionServiceProtoFile = "quizroom/v1/session.proto"
)

// SessionServiceServer reads live sessions. Requests and responses are
// google.protobuf.Struct; requests carry {"sessionId": "..."}.
type SessionServiceServer interface {
	GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSession", Handler: unaryHandler(GetSessionMethod, SessionServiceServer.GetSession)},
		{MethodName: "GetLeaderboard", Handler: unaryHandler(GetLeaderboardMethod, SessionServiceServer.GetLeaderboard)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: sessionServiceProtoFile,
}

func unaryHandler(
	method string,
	call func(SessionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(SessionServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SessionServiceServer), ctx, req.(*structpb.Struct))
		}

		return interceptor(ctx, in, info, handler)
	}
}

type sessionServer struct {
	sessions *session.Registry
}

func (s *sessionServer) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(req)
	if err != nil {
		return nil, err
	}

	ss, err := s.sessions.Snapshot(ctx, id)
	if err != nil {
		return nil, errors.Convert(err)
	}

	m := map[string]any{
		"sessionId":            ss.SessionID,
		"quizId":               ss.QuizID,
		"roomId":               ss.RoomID,
		"currentQuestionIndex": ss.CurrentQuestionIndex,
		"totalQuestions":       ss.TotalQuestions,
		"status":               string(ss.Status),
		"participants":         len(ss.Scores),
	}
	if ss.StartTime != nil {
		m["startTime"] = ss.StartTime.Format(time.RFC3339Nano)
	}
	if ss.CompleteTime != nil {
		m["completeTime"] = ss.CompleteTime.Format(time.RFC3339Nano)
	}

	return toStruct(m)
}

func (s *sessionServer) GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(req)
	if err != nil {
		return nil, err
	}

	l, err := s.sessions.GetLeaderboard(ctx, id)
	if err != nil {
		return nil, errors.Convert(err)
	}

	return toStruct(map[string]any{
		"sessionId":   l.SessionID,
		"leaderboard": leaderboardEntries(l.Entries),
	})
}

func sessionID(req *structpb.Struct) (string, error) {
	id := req.GetFields()["sessionId"].GetStringValue()
	if id == "" {
		return "", errors.InvalidInput("sessionId is required")
	}

	return id, nil
}

func leaderboardEntries(entries []domain.LeaderboardEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"userId":   e.UserID,
			"username": e.Username,
			"score":    e.Score.InexactFloat64(),
		})
	}

	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return s, nil
}

// SessionServiceClient calls the session service.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func (c *SessionServiceClient) GetSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetSessionMethod, sessionID, opts...)
}

func (c *SessionServiceClient) GetLeaderboard(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetLeaderboardMethod, sessionID, opts...)
}

func (c *SessionServiceClient) invoke(ctx context.Context, method, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"sessionId": sessionID})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
