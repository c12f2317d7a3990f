package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// AdminRole is the role claim value that grants access to the ride records.
const AdminRole = "admin"

// AdminClaims are the JWT claims the administrator gate reads.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewAdminGate returns a middleware that admits only requests bearing an
// HS256 token signed with secret whose role claim is AdminRole. Missing or
// invalid tokens get 401; valid tokens for any other role get 403.
//
// An empty secret disables the gate, for deployments where an upstream proxy
// has already authenticated the caller.
func NewAdminGate(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
				return
			}

			var claims AdminClaims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
				return key, nil
			})
			if err != nil {
				var verr *jwt.ValidationError
				if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
					deny(w, http.StatusUnauthorized, "unauthorized", "token expired")
					return
				}
				slog.DebugContext(r.Context(), "rejected admin token", "error", err)
				deny(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			if claims.Role != AdminRole {
				deny(w, http.StatusForbidden, "forbidden", "administrator role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func deny(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="rides"`)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
