package server

import (
	"errors"
	"net/http"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/R4255/news-portal/internal/auth"
)

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.CurrentUser(r); ok {
		http.Redirect(w, r, auth.SafeNext(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", map[string]any{
		"Title": "Log in",
		"Next":  r.URL.Query().Get("next"),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	next := r.FormValue("next")

	u, err := s.auth.Authenticate(r.Context(), username, r.FormValue("password"))
	if err != nil {
		msg := "Invalid username or password."
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.log.Error("authenticating user", zap.String("username", username), zap.Error(err))
			msg = "Login is unavailable right now. Please try again."
		}
		s.flash(w, r, auth.FlashError, msg)
		target := "/login"
		if next != "" {
			target += "?next=" + url.QueryEscape(next)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	if err := s.auth.Login(w, r, u); err != nil {
		s.log.Error("starting session", zap.Error(err))
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}
	s.log.Info("user logged in", zap.Int64("user_id", u.ID))
	http.Redirect(w, r, auth.SafeNext(next), http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", map[string]any{
		"Title": "Sign up",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := auth.RegisterForm{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}

	_, err := s.auth.Register(r.Context(), form)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.Is(err, auth.ErrUserExists):
			s.flash(w, r, auth.FlashError, "That username is already taken.")
		case errors.As(err, &verrs):
			for _, field := range []string{"Username", "Email", "Password"} {
				if ferr, ok := verrs[field]; ok {
					s.flash(w, r, auth.FlashError, ferr.Error())
				}
			}
		default:
			s.log.Error("registering user", zap.Error(err))
			s.flash(w, r, auth.FlashError, "Registration is unavailable right now. Please try again.")
		}
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	s.flash(w, r, auth.FlashSuccess, "Account created. Please log in.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(w, r); err != nil {
		s.log.Warn("clearing session", zap.Error(err))
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) flash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	if err := s.auth.AddFlash(w, r, kind, msg); err != nil {
		s.log.Warn("saving flash", zap.Error(err))
	}
}
