package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/finboard/internal/core"
)

// withRequestMetadata tags ctx with the client IP (already resolved by
// TrustedRealIP) and marks the import as an upload.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, r.RemoteAddr)
	return core.ContextWithTrigger(ctx, core.TriggerUpload)
}
