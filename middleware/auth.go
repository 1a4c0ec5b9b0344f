package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/metrics"
	"github.com/cppla/billboard/utils"
)

// ContextIdentityKey is the key used to store the caller identity in Gin context.
const ContextIdentityKey = "identity"

// Authenticator resolves an Authorization header to a caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (auth.Identity, error)
}

var authErrorCodes = map[auth.Kind]struct {
	code    int
	message string
}{
	auth.KindMalformed: {40105, "invalid token"},
	auth.KindExpired:   {40106, "token expired"},
	auth.KindUnknown:   {40107, "unknown user"},
	auth.KindDisabled:  {40108, "account disabled"},
}

// AuthGate resolves the caller once per request and enforces policy before
// any handler runs. Public routes skip token verification entirely.
func AuthGate(authn Authenticator, policy *auth.Policy, m *metrics.Collector, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx *gin.Context) {
		rule := policy.Match(ctx.Request.Method, ctx.Request.URL.Path)
		if rule.Public {
			ctx.Next()
			return
		}

		var caller *auth.Identity
		id, err := authn.Authenticate(ctx.Request.Context(), ctx.GetHeader("Authorization"))
		switch {
		case err == nil:
			caller = &id
		case errors.Is(err, auth.ErrNoCredentials):
		case auth.KindOf(err) != 0:
			kind := auth.KindOf(err)
			m.RecordAuthRejected(kind.String())
			log.Debug("token rejected", zap.String("path", ctx.Request.URL.Path), zap.Error(err))
			e := authErrorCodes[kind]
			utils.Error(ctx, http.StatusUnauthorized, e.code, e.message)
			ctx.Abort()
			return
		default:
			log.Error("resolve caller failed", zap.Error(err))
			utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to resolve caller")
			ctx.Abort()
			return
		}

		switch err := policy.Authorize(rule, caller); {
		case err == nil:
		case errors.Is(err, auth.ErrForbidden):
			m.RecordAuthRejected("forbidden")
			utils.Error(ctx, http.StatusForbidden, 40301, "insufficient permissions")
			ctx.Abort()
			return
		default:
			m.RecordAuthRejected("anonymous")
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
			return
		}

		if caller != nil {
			ctx.Set(ContextIdentityKey, *caller)
			ctx.Request = ctx.Request.WithContext(auth.WithIdentity(ctx.Request.Context(), *caller))
		}
		ctx.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthGate.
func CurrentIdentity(ctx *gin.Context) (auth.Identity, bool) {
	v, ok := ctx.Get(ContextIdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
