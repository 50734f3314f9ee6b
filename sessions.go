package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	sessionCookie = "session"
	flashCookie   = "flash"
	flashTTL      = 5 * time.Minute
)

type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type flashClaims struct {
	Flashes []Flash `json:"flashes"`
	jwt.StandardClaims
}

// sessionManager keeps the logged-in username and pending flash messages in
// HS256-signed cookies.
type sessionManager struct {
	key    []byte
	ttl    time.Duration
	secure bool
}

func newSessionManager(secret string, ttl time.Duration, secure bool) *sessionManager {
	return &sessionManager{key: []byte(secret), ttl: ttl, secure: secure}
}

func (m *sessionManager) generateJWT(username string) (string, error) {
	claims := &jwt.StandardClaims{
		Subject:   username,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(m.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

func (m *sessionManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return m.key, nil
}

func (m *sessionManager) verifyToken(tokenString string) (username string, valid bool) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func (m *sessionManager) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login issues the session cookie. Without remember the cookie lives for the
// browser session only; the token itself always expires after ttl.
func (m *sessionManager) Login(w http.ResponseWriter, username string, remember bool) error {
	token, err := m.generateJWT(username)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	c := m.cookie(sessionCookie, token)
	if remember {
		c.MaxAge = int(m.ttl.Seconds())
	}
	http.SetCookie(w, c)
	return nil
}

func (m *sessionManager) Logout(w http.ResponseWriter) {
	c := m.cookie(sessionCookie, "")
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (m *sessionManager) CurrentUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	return m.verifyToken(c.Value)
}

func (m *sessionManager) encodeFlashes(flashes []Flash) (string, error) {
	claims := &flashClaims{
		Flashes:        flashes,
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(flashTTL).Unix()},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

func (m *sessionManager) decodeFlashes(tokenString string) []Flash {
	claims := &flashClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc)
	if err != nil || !token.Valid {
		return nil
	}
	return claims.Flashes
}

// flashBag collects the flash messages of one request: the ones carried over
// from the previous redirect plus any added while handling this request.
type flashBag struct {
	messages []Flash
	loaded   bool
}

type flashKey struct{}

func (m *sessionManager) loadFlashes(r *http.Request) *http.Request {
	bag := &flashBag{}
	if c, err := r.Cookie(flashCookie); err == nil {
		bag.loaded = true
		bag.messages = m.decodeFlashes(c.Value)
	}
	return r.WithContext(context.WithValue(r.Context(), flashKey{}, bag))
}

func flashesFrom(r *http.Request) *flashBag {
	if bag, ok := r.Context().Value(flashKey{}).(*flashBag); ok {
		return bag
	}
	return &flashBag{}
}

// drain returns the pending messages for rendering and clears the carried
// cookie if there was one.
func (m *sessionManager) drain(w http.ResponseWriter, r *http.Request) []Flash {
	bag := flashesFrom(r)
	msgs := bag.messages
	bag.messages = nil
	if bag.loaded {
		c := m.cookie(flashCookie, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
		bag.loaded = false
	}
	return msgs
}

// persist stores pending messages in the flash cookie so they survive a redirect.
func (m *sessionManager) persist(w http.ResponseWriter, r *http.Request) error {
	bag := flashesFrom(r)
	if len(bag.messages) == 0 {
		if bag.loaded {
			m.drain(w, r)
		}
		return nil
	}
	value, err := m.encodeFlashes(bag.messages)
	if err != nil {
		return fmt.Errorf("sign flashes: %w", err)
	}
	http.SetCookie(w, m.cookie(flashCookie, value))
	bag.messages = nil
	bag.loaded = false
	return nil
}
