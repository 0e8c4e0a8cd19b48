// Package httpcontext bridges fasthttp requests to context.Context and keeps
// the verified caller on the request between middleware and handlers.
package httpcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/tasktracker/domain"
	appLogger "github.com/fastygo/tasktracker/pkg/logger"
)

type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
)

const (
	// UserValueUserID holds the caller id as a string for logging.
	UserValueUserID = "user_id"
	// UserValueIdentity holds the verified domain.Identity.
	UserValueIdentity = "identity"

	HeaderRequestID = "X-Request-ID"

	maxRequestIDLen = 64
)

// Adapter derives a bounded stdlib context for each request.
type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach returns a context bounded by the adapter timeout that carries the
// request id, the caller id when authenticated, and client metadata. The
// request id is echoed in the response header.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := requestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set(HeaderRequestID, reqID)

	if identity, ok := IdentityFrom(ctx); ok {
		stdCtx = appLogger.ContextWithUserID(stdCtx, identity.UserID.String())
	} else if userID, ok := ctx.UserValue(UserValueUserID).(string); ok && userID != "" {
		stdCtx = appLogger.ContextWithUserID(stdCtx, userID)
	}
	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := ctx.Request.Header.UserAgent(); len(ua) > 0 {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, string(ua))
	}
	return stdCtx, cancel
}

// SetIdentity stores the verified caller on the request.
func SetIdentity(ctx *fasthttp.RequestCtx, identity domain.Identity) {
	ctx.SetUserValue(UserValueIdentity, identity)
	ctx.SetUserValue(UserValueUserID, identity.UserID.String())
}

func IdentityFrom(ctx *fasthttp.RequestCtx) (domain.Identity, bool) {
	identity, ok := ctx.UserValue(UserValueIdentity).(domain.Identity)
	return identity, ok
}

// requestID reuses the inbound X-Request-ID when it is short and made of
// token characters, so it can be logged verbatim. Anything else gets a fresh uuid.
func requestID(ctx *fasthttp.RequestCtx) string {
	if ctx != nil {
		if header := ctx.Request.Header.Peek(HeaderRequestID); validRequestID(header) {
			return string(header)
		}
	}
	return uuid.NewString()
}

func validRequestID(id []byte) bool {
	if len(id) == 0 || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
