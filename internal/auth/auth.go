// Package auth gates the application behind a single configured administrator.
//
// A successful login yields a signed session token carrying a random session
// ID. The token lives in a cookie; the session ID keys the per-session
// record cache on the server.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "rentbook_session"
	issuer     = "rentbook"
)

var (
	ErrNotConfigured      = errors.New("admin credentials are not configured")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid session")
)

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) configured() bool {
	return c.Username != "" && c.Password != ""
}

// Claims is the session token payload.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Authenticator checks credentials and issues and verifies session tokens.
type Authenticator struct {
	creds  Credentials
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Authenticator. An empty secret is replaced by a random one,
// which invalidates sessions on restart. A zero ttl issues tokens without expiry.
func New(creds Credentials, secret []byte, ttl time.Duration) (*Authenticator, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &Authenticator{creds: creds, secret: secret, ttl: ttl, now: time.Now}, nil
}

// Configured reports whether an administrator username and password are set.
func (a *Authenticator) Configured() bool {
	return a.creds.configured()
}

// Check compares the submitted credentials in constant time.
func (a *Authenticator) Check(username, password string) error {
	if !a.creds.configured() {
		return ErrNotConfigured
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.creds.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.creds.Password)) == 1
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// Login checks credentials and returns a signed token for a new session.
func (a *Authenticator) Login(username, password string) (token string, claims *Claims, err error) {
	if err := a.Check(username, password); err != nil {
		return "", nil, err
	}

	sid, err := newSessionID()
	if err != nil {
		return "", nil, err
	}

	now := a.now()
	claims = &Claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  a.creds.Username,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if a.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses a session token and returns its claims.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// SessionCookie wraps a token in the session cookie.
func (a *Authenticator) SessionCookie(token string, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if a.ttl > 0 {
		c.MaxAge = int(a.ttl.Seconds())
	}
	return c
}

// ClearCookie expires the session cookie.
func ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest verifies the session cookie on r.
func (a *Authenticator) FromRequest(r *http.Request) (*Claims, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrInvalidSession
	}
	return a.Verify(c.Value)
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
