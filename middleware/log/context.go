package logger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	TraceIDKey contextKey = "trace_id"
	scopeKey   contextKey = "update_scope"
)

type updateScope struct {
	chatID int64
	userID int64
}

// WithTraceID adds a trace ID to the context, generating a UUID when traceID
// is empty.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID carried by ctx, or "".
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithUpdate starts the log scope of one inbound update: a fresh trace ID plus
// the chat and user it concerns. Zero ids are omitted from log lines.
func WithUpdate(ctx context.Context, chatID, userID int64) context.Context {
	ctx = WithTraceID(ctx, "")
	return context.WithValue(ctx, scopeKey, updateScope{chatID: chatID, userID: userID})
}

func scopeFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if scope, ok := ctx.Value(scopeKey).(updateScope); ok {
		if scope.chatID != 0 {
			fields = append(fields, zap.Int64("chat_id", scope.chatID))
		}
		if scope.userID != 0 {
			fields = append(fields, zap.Int64("user_id", scope.userID))
		}
	}
	return fields
}
