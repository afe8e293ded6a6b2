package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vedran77/relay/internal/domain"
)

type contextKey string

const ParticipantKey contextKey = "participant_id"

var ErrMissingToken = errors.New("missing token")

// Auth checks the bearer token and stores its subject as the acting participant.
// With an empty secret every request passes through unauthenticated.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Missing or invalid token"}}`, http.StatusUnauthorized)
				return
			}

			participant, err := ParseToken(strings.TrimPrefix(header, "Bearer "), jwtSecret)
			if err != nil {
				http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Invalid or expired token"}}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ParticipantKey, participant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken validates an HS256 token and returns its subject as a participant id.
func ParseToken(tokenStr, secret string) (domain.ParticipantID, error) {
	if tokenStr == "" {
		return "", ErrMissingToken
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	return domain.NewParticipantID(sub)
}

// GetParticipant returns the authenticated participant, if the request carried one.
func GetParticipant(ctx context.Context) (domain.ParticipantID, bool) {
	p, ok := ctx.Value(ParticipantKey).(domain.ParticipantID)
	return p, ok
}
