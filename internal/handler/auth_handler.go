package handler

import (
	"errors"
	"net/http"

	"github.com/prn-tf/bugtracker/internal/auth"
	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/service"
)

// Flash texts of the authentication pages.
const (
	MsgInvalidLogin       = "Invalid username or password"
	MsgRegistered         = "You are now registered and can log in"
	MsgRegistrationFailed = "Registration failed. Please try again."
)

func (h *WebHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	// A pending notice is shown here instead of bouncing to the dashboard,
	// which may be the page that just failed.
	ac := auth.GetAuthContext(r.Context())
	if ac != nil && ac.Principal.IsAuthenticated() && len(ac.Session.Flashes) == 0 {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.pages.render(w, http.StatusOK, "index.html", h.page(w, r, "Welcome"))
}

func (h *WebHandler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.PrincipalFrom(r.Context()).IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.pages.render(w, http.StatusOK, "login.html", h.page(w, r, "Login"))
}

func (h *WebHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, MsgInvalidLogin, "/login")
		return
	}

	principal, err := h.authService.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			h.logger.Error().Err(err).Msg("login failed")
		}
		h.fail(w, r, MsgInvalidLogin, "/login")
		return
	}

	if err := h.sessions.Login(w, r, principal); err != nil {
		h.logger.Error().Err(err).Msg("failed to bind session")
		h.fail(w, r, MsgInvalidLogin, "/login")
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (h *WebHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r)
	h.success(w, r, auth.MsgLoggedOut, "/login")
}

func (h *WebHandler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, http.StatusOK, "register.html", RegisterPageData{
		PageData: h.page(w, r, "Register"),
	})
}

func (h *WebHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, MsgRegistrationFailed, "/register")
		return
	}

	input := service.RegisterInput{
		Username:  r.PostFormValue("username"),
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
	}

	_, err := h.authService.Register(r.Context(), input)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			data := RegisterPageData{
				PageData: h.page(w, r, "Register"),
				Username: input.Username,
			}
			data.Errors = verr.Messages
			h.pages.render(w, http.StatusOK, "register.html", data)
			return
		}
		h.logger.Error().Err(err).Msg("registration failed")
		h.fail(w, r, MsgRegistrationFailed, "/register")
		return
	}

	h.success(w, r, MsgRegistered, "/login")
}
