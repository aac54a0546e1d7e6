package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
)

var errInternal = status.Error(codes.Internal, "internal server error")

// Recover возвращает unary-интерсептор, который перехватывает паники,
// логирует их со стеком и отвечает codes.Internal без деталей.
// Логгер берётся из контекста, иначе base, иначе slog.Default().
func Recover(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(ctx, base, info.FullMethod, r)
				resp, err = nil, errInternal
			}
		}()

		return handler(ctx, req)
	}
}

// StreamRecover — то же для stream-вызовов (health Watch).
func StreamRecover(base *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(ss.Context(), base, info.FullMethod, r)
				err = errInternal
			}
		}()

		return handler(srv, ss)
	}
}

func logPanic(ctx context.Context, base *slog.Logger, method string, r any) {
	l := log.From(ctx)
	if l == slog.Default() && base != nil {
		l = base
	}

	l.Error("panic_recovered",
		slog.String("method", method),
		slog.Any("panic", r),
		slog.String("stack", string(debug.Stack())),
	)
}
