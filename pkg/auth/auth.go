// Package auth issues and checks the session token used by the HTTP API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrNoIDToken    = errors.New("missing id_token in oauth response")
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
}

type Config struct {
	Secret        string
	AdminUser     string
	AdminPassword string // empty disables password login
	CookieName    string
	TTL           time.Duration
	SecureCookie  bool
	Google        GoogleConfig
}

// Claims identify a signed-in user.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.StandardClaims
}

type Manager struct {
	config Config
	oauth  *oauth2.Config
}

func New(config Config) (*Manager, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if config.AdminUser == "" {
		config.AdminUser = "admin"
	}
	if config.CookieName == "" {
		config.CookieName = "campus_session"
	}
	if config.TTL == 0 {
		config.TTL = 24 * time.Hour
	}
	if config.Google.AuthURL == "" {
		config.Google.AuthURL = "https://accounts.google.com/o/oauth2/auth"
	}
	if config.Google.TokenURL == "" {
		config.Google.TokenURL = "https://oauth2.googleapis.com/token"
	}

	m := &Manager{config: config}
	if config.Google.ClientID != "" {
		m.oauth = &oauth2.Config{
			ClientID:     config.Google.ClientID,
			ClientSecret: config.Google.ClientSecret,
			RedirectURL:  config.Google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.Google.AuthURL,
				TokenURL: config.Google.TokenURL,
			},
		}
	}
	return m, nil
}

// Issue signs a session token for subject.
func (m *Manager) Issue(subject, name, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  name,
		Email: email,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(m.config.TTL).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// Verify checks the signature and expiry of token.
func (m *Manager) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CheckAdmin reports whether user and password match the admin account.
func (m *Manager) CheckAdmin(user, password string) bool {
	if m.config.AdminPassword == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(m.config.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.config.AdminPassword)) == 1
	return userOK && passOK
}

func (m *Manager) GoogleEnabled() bool {
	return m.oauth != nil
}

// GoogleAuthURL is the consent page the user is sent to.
func (m *Manager) GoogleAuthURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// GoogleIdentity exchanges code for tokens and reads the identity from the
// returned id_token. The id_token arrives over TLS straight from the token
// endpoint, so its signature is not checked.
func (m *Manager) GoogleIdentity(ctx context.Context, code string) (*Claims, error) {
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, ErrNoIDToken
	}

	claims := &Claims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to decode id_token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("id_token has no subject")
	}
	return claims, nil
}
