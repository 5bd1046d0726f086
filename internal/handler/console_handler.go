package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/service"
	"go-backoffice-console/internal/session"
)

type ConsoleHandler struct {
	console *service.ConsoleService
	session *session.Store
}

func NewConsoleHandler(console *service.ConsoleService, store *session.Store) *ConsoleHandler {
	return &ConsoleHandler{console: console, session: store}
}

type dashboardView struct {
	User       *model.User     `json:"user"`
	Navigation []model.NavItem `json:"navigation"`
}

func (h *ConsoleHandler) Dashboard(w http.ResponseWriter, _ *http.Request) {
	snap := h.session.Snapshot()
	writeSuccess(w, http.StatusOK, dashboardView{
		User:       snap.User,
		Navigation: h.console.Navigation(snap.Permissions),
	}, nil)
}

func (h *ConsoleHandler) Module(w http.ResponseWriter, r *http.Request) {
	view, err := h.console.ModuleView(h.session.Permissions(), chi.URLParam(r, "module"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, view, nil)
}
