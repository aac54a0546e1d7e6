// interceptors — серверные gRPC-интерсепторы auth-сервиса (health-сервер).
package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
)

// UnaryLoggingInterceptor логирует unary-вызовы и кладёт в context
// обогащённый логгер (request_id, method, peer).
//
// request_id берётся из metadata x-request-id, иначе генерируется UUID.
// Итоговая запись msg="grpc" с code и dur; уровень зависит от кода ответа.
func UnaryLoggingInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		l := base.With(
			slog.String("request_id", requestID(ctx)),
			slog.String("method", info.FullMethod),
			slog.String("peer", peerAddr(ctx)),
		)
		ctx = log.Into(ctx, l)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		l.LogAttrs(ctx, levelFor(code), "grpc",
			slog.String("code", code.String()),
			slog.Duration("dur", time.Since(start)),
		)

		return resp, err
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-request-id"); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}

	return uuid.NewString()
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p != nil && p.Addr != nil {
		return p.Addr.String()
	}

	return "-"
}

// levelFor: серверные сбои — Error, отказы клиенту — Warn, успех — Info.
func levelFor(c codes.Code) slog.Level {
	switch c {
	case codes.OK:
		return slog.LevelInfo
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
