package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/profile"
	"go-backoffice-console/internal/service"
	"go-backoffice-console/internal/session"
	"go-backoffice-console/pkg/apierror"
)

const defaultLanding = "/dashboard"

type AuthHandler struct {
	auth       *service.AuthService
	console    *service.ConsoleService
	session    *session.Store
	profiles   *profile.Reconciler
	signInPath string
}

func NewAuthHandler(auth *service.AuthService, console *service.ConsoleService, store *session.Store, profiles *profile.Reconciler) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		console:    console,
		session:    store,
		profiles:   profiles,
		signInPath: profiles.SignInPath(),
	}
}

type signInView struct {
	Session model.SessionView `json:"session"`
	Next    string            `json:"next"`
}

// SignInPage describes the sign-in route. It never triggers a profile fetch.
func (h *AuthHandler) SignInPage(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, signInView{
		Session: h.sessionView(),
		Next:    safeNext(r.URL.Query().Get("next")),
	}, nil)
}

// SignIn accepts JSON or a form post. Form posts are answered with a 303 to
// the page the operator came from.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	payload, next, isForm, err := decodeSignIn(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.auth.SignIn(r.Context(), payload.Email, payload.Password); err != nil {
		writeError(w, err)
		return
	}

	if isForm {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	writeSuccess(w, http.StatusOK, signInView{Session: h.sessionView(), Next: next}, nil)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		// Memory is already cleared; only persistence failed.
		writeError(w, apierror.New("STORAGE_ERROR", "session cleared but storage could not be updated", err.Error(), http.StatusInternalServerError))
		return
	}

	if isFormRequest(r) {
		http.Redirect(w, r, h.signInPath, http.StatusSeeOther)
		return
	}

	writeSuccess(w, http.StatusOK, h.sessionView(), nil)
}

// Session reports the current session without any token material.
func (h *AuthHandler) Session(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.sessionView(), nil)
}

// RetryProfile re-runs a failed profile load synchronously.
func (h *AuthHandler) RetryProfile(w http.ResponseWriter, r *http.Request) {
	if !h.session.IsAuthenticated() {
		writeError(w, model.ErrNotAuthenticated)
		return
	}

	state := h.profiles.Retry(r.Context())
	if state == profile.StateError {
		_, err := h.profiles.State()
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.sessionView(), nil)
}

func (h *AuthHandler) sessionView() model.SessionView {
	state, err := h.profiles.State()
	snap := h.session.Snapshot()
	switch {
	case !snap.IsAuthenticated():
		state = profile.StateSignedOut
	case snap.User != nil:
		state = profile.StateReady
	}
	return h.console.SessionView(snap, string(state), err)
}

func decodeSignIn(r *http.Request) (model.SignInRequest, string, bool, error) {
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return model.SignInRequest{}, "", true, apierror.New("BAD_REQUEST", "invalid form body", "", http.StatusBadRequest)
		}
		payload := model.SignInRequest{Email: r.PostForm.Get("email"), Password: r.PostForm.Get("password")}
		return payload, safeNext(r.PostForm.Get("next")), true, nil
	}

	var payload struct {
		model.SignInRequest
		Next string `json:"next"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return model.SignInRequest{}, "", false, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
	}
	return payload.SignInRequest, safeNext(payload.Next), false, nil
}

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// safeNext only allows local absolute paths as a post sign-in target.
func safeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return defaultLanding
	}
	return raw
}
