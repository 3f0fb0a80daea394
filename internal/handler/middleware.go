package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const (
	subjectKey    contextKey = "subject"
	storeClaimKey contextKey = "storeClaim"
)

// JWTAuthMiddleware validates Bearer tokens and injects the subject and
// tenant claim into the request context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			ctx = context.WithValue(ctx, storeClaimKey, claims.StoreID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated profile id.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(subjectKey).(string)
	return v
}

func storeClaimFromContext(ctx context.Context) string {
	v, _ := ctx.Value(storeClaimKey).(string)
	return v
}

// selectedStoreHeader carries an admin's store selection.
const selectedStoreHeader = "X-Store-Id"

// contextRequest describes the actor of r for tenant resolution.
func contextRequest(r *http.Request) service.ContextRequest {
	selected := r.Header.Get(selectedStoreHeader)
	if selected == "" {
		selected = r.URL.Query().Get("storeId")
	}
	return service.ContextRequest{
		Subject:         SubjectFromContext(r.Context()),
		Host:            r.Host,
		SessionStoreID:  storeClaimFromContext(r.Context()),
		SelectedStoreID: selected,
	}
}
