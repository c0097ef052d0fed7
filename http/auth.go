package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	// The header where clients put their id.
	HeaderClientID = "X-Jaws-Client-Id"

	ErrTypeUnauthorized = "unauthorized"
)

// VerifyAuthToken returns a websocket handshake that rejects connections
// without the given bearer token. An empty token accepts everything.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(HeaderClientID)).Error(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler answers 401 to requests without the given bearer
// token. An empty token accepts everything.
func VerifyAuthTokenHandler(token string, next http.HandlerFunc) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(HeaderClientID)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func verifyToken(token string, r *http.Request) error {
	if token == "" {
		return nil
	}

	userToken := GetUserTokenFromHTTPRequest(r)
	if subtle.ConstantTimeCompare([]byte(userToken), []byte(token)) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("remote_addr", r.RemoteAddr)
	}
	return nil
}

// GetUserTokenFromHTTPRequest returns the bearer token of the Authorization
// header, or the token query parameter for clients that cannot set headers.
func GetUserTokenFromHTTPRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
