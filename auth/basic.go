// Package auth guards the expenses API with HTTP Basic credentials.
package auth

import (
	"crypto/subtle"
	"net/http"

	"expenses/logger"
)

// Credentials holds the single API user. Only the bcrypt hash of the password
// is kept in memory.
type Credentials struct {
	username string
	hash     string
}

func NewCredentials(username, password string) (*Credentials, error) {
	h, err := Hash(password)
	if err != nil {
		return nil, err
	}
	return &Credentials{username: username, hash: h}, nil
}

func (c *Credentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passOK := Compare(c.hash, password)
	return userOK && passOK
}

// Middleware rejects requests without valid Basic credentials with 401.
func (c *Credentials) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="expenses"`)
			http.Error(w, "Missing Authorization Header", http.StatusUnauthorized)
			return
		}
		if !c.Verify(user, pass) {
			logger.Debug("basic auth rejected", logger.FieldKV("user", user))
			w.Header().Set("WWW-Authenticate", `Basic realm="expenses"`)
			http.Error(w, "Invalid Username or Password", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
