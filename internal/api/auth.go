package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// authenticated requires a valid bearer token when a JWT secret is configured.
func (s *Server) authenticated(next http.Handler) http.Handler {
	if s.config.JWTSecret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sqlextras"`)
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := s.validateJWT(token); err != nil {
			s.log.Debug("rejected token", "err", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="sqlextras", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "%v", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validateJWT checks the signature, expiry, issuer and audience of a token.
func (s *Server) validateJWT(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return fmt.Errorf("%w: invalid token: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	// Validate issuer if configured
	if s.config.Issuer != "" {
		issuer, _ := claims.GetIssuer()
		if issuer != s.config.Issuer {
			return fmt.Errorf("%w: invalid issuer: expected %s, got %s", ErrUnauthorized, s.config.Issuer, issuer)
		}
	}

	// Validate audience if configured
	if s.config.Audience != "" {
		audiences, _ := claims.GetAudience()
		if !slices.Contains(audiences, s.config.Audience) {
			return fmt.Errorf("%w: invalid audience: expected %s", ErrUnauthorized, s.config.Audience)
		}
	}

	return nil
}
