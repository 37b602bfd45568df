// Package auth gates the control surface behind two independent credential
// channels: a single-session cookie minted at login, and a static pre-shared
// key header for machine callers.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/eddwatts/BellTimer/internal/state"
)

const (
	// CookieName carries the session token.
	CookieName = "session"
	// KeyHeader carries the pre-shared key.
	KeyHeader = "X-Api-Key"
)

// Result classifies a protected-route check.
type Result int

const (
	Granted Result = iota
	// Unauthorized: the request presented a credential and it was wrong.
	Unauthorized
	// RedirectLogin: no credential at all on an interactive route.
	RedirectLogin
)

// Guard holds the static secrets and the device-wide session token, which
// lives in the single owned device state.
type Guard struct {
	psk          []byte
	passwordHash []byte
	st           *state.DeviceState
}

func New(presharedKey, passwordHash string, st *state.DeviceState) *Guard {
	return &Guard{
		psk:          []byte(presharedKey),
		passwordHash: []byte(passwordHash),
		st:           st,
	}
}

// CheckProtected applies the protected-route policy: cookie or key grants;
// a wrong key is rejected outright; a keyless request is sent to login.
func (g *Guard) CheckProtected(r *http.Request) Result {
	if g.validCookie(r) || g.validKey(r) {
		return Granted
	}
	if r.Header.Get(KeyHeader) != "" {
		return Unauthorized
	}
	return RedirectLogin
}

// CheckQuery applies the read-only query policy: pre-shared key or nothing.
func (g *Guard) CheckQuery(r *http.Request) Result {
	if g.validKey(r) {
		return Granted
	}
	return Unauthorized
}

// Login verifies the web password and mints a fresh session token,
// invalidating whatever token was valid before. At most one session exists
// device-wide.
func (g *Guard) Login(password string) (string, bool) {
	if err := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)); err != nil {
		log.Warn().Msg("Rejected login with wrong password")
		return "", false
	}
	token := uuid.NewString()
	g.st.SessionToken = token
	log.Info().Msg("Login succeeded, session minted")
	return token, true
}

// Logout clears the current session token.
func (g *Guard) Logout() {
	g.st.SessionToken = ""
}

func (g *Guard) validCookie(r *http.Request) bool {
	if g.st.SessionToken == "" {
		return false
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(g.st.SessionToken)) == 1
}

func (g *Guard) validKey(r *http.Request) bool {
	key := r.Header.Get(KeyHeader)
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), g.psk) == 1
}
