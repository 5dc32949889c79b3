package core

import "context"

type contextKey string

const (
	ctxKeyClientIP contextKey = "client_ip"
	ctxKeyTrigger  contextKey = "import_trigger"
)

// Import triggers recorded on the context and in logs.
const (
	TriggerUpload  = "upload"
	TriggerWatch   = "watch"
	TriggerCLI     = "cli"
	TriggerRestore = "restore"
)

// ContextWithClientIP records the client address that started an import.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIPFromContext returns the recorded client address or "".
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// ContextWithTrigger records what started an import.
func ContextWithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, trigger)
}

// TriggerFromContext returns the recorded trigger, defaulting to TriggerUpload.
func TriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTrigger).(string); ok {
		return v
	}
	return TriggerUpload
}
