package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/pkg/auth"
)

const releaseTimeout = 10 * time.Second

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, http.StatusBadRequest, "Username and password are required.")
		return
	}
	if !s.deps.Auth.CheckAdmin(form.Username, form.Password) {
		log.Warn().Str("user", form.Username).Msg("rejected login")
		fail(c, http.StatusUnauthorized, "Invalid username or password.")
		return
	}

	if !s.startSession(c, form.Username, form.Username, "") {
		return
	}
	respond(c, gin.H{"message": "Logged in.", "user": form.Username})
}

// logout drops the session content along with the cookie.
func (s *Server) logout(c *gin.Context) {
	if claims, ok := auth.ClaimsFrom(c); ok {
		if state := s.deps.Sessions.Drop(claims.Subject); state != nil {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), releaseTimeout)
			defer cancel()
			if err := state.Close(ctx); err != nil {
				log.Warn().Err(err).Str("user", claims.Subject).Msg("failed to release session index")
			}
		}
	}
	s.deps.Auth.ClearCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (s *Server) googleLogin(c *gin.Context) {
	if !s.deps.Auth.GoogleEnabled() {
		fail(c, http.StatusNotFound, "Google sign-in is not configured.")
		return
	}
	state := uuid.NewString()
	s.deps.Auth.SetState(c, state)
	c.Redirect(http.StatusFound, s.deps.Auth.GoogleAuthURL(state))
}

func (s *Server) googleCallback(c *gin.Context) {
	if !s.deps.Auth.GoogleEnabled() {
		fail(c, http.StatusNotFound, "Google sign-in is not configured.")
		return
	}
	if !s.deps.Auth.CheckState(c, c.Query("state")) {
		c.Redirect(http.StatusSeeOther, "/login?error=AuthFailed")
		return
	}

	claims, err := s.deps.Auth.GoogleIdentity(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.Warn().Err(err).Msg("google sign-in failed")
		c.Redirect(http.StatusSeeOther, "/login?error=AuthFailed")
		return
	}

	if !s.startSession(c, claims.Subject, claims.Name, claims.Email) {
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) startSession(c *gin.Context, subject, name, email string) bool {
	token, err := s.deps.Auth.Issue(subject, name, email)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		fail(c, http.StatusInternalServerError, internalError)
		return false
	}
	s.deps.Auth.SetCookie(c, token)
	log.Info().Str("user", subject).Msg("signed in")
	return true
}
