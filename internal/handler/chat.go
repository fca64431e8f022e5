package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/model"
)

// ChatEngine is the subset of chat.Engine the chat pages use.
type ChatEngine interface {
	SubmitMessage(ctx context.Context, session *model.Session, raw string) (*model.ChatTurn, error)
	Transcript(ctx context.Context, session *model.Session) ([]model.ChatTurn, error)
	GetTurn(ctx context.Context, session *model.Session, index int) (model.ChatTurn, error)
	Reset(ctx context.Context, session *model.Session) error
}

// ChatHandler serves the transcript page and the download links.
// All routes must be mounted behind auth.RequireSession.
type ChatHandler struct {
	engine ChatEngine
	pages  *Pages
	logger *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(engine ChatEngine, pages *Pages, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, pages: pages, logger: logger}
}

// Index renders the greeting and the user's transcript.
//
// HTTP: GET /
func (h *ChatHandler) Index(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.renderTranscript(w, r, session)
}

// Submit sends the "query" form field through the engine and re-renders the
// page. An empty query just re-renders.
//
// HTTP: POST /
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := h.engine.SubmitMessage(r.Context(), session, r.PostFormValue("query")); err != nil {
		h.pages.renderError(w, r, err)
		return
	}
	h.renderTranscript(w, r, session)
}

// Reset clears the transcript.
//
// HTTP: POST /reset
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := h.engine.Reset(r.Context(), session); err != nil {
		h.pages.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *ChatHandler) renderTranscript(w http.ResponseWriter, r *http.Request, session *model.Session) {
	turns, err := h.engine.Transcript(r.Context(), session)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	data := newPageData(r, "Prompt generator", session.Username)
	data.Turns = transcriptView(turns)
	h.pages.render(w, http.StatusOK, "index", data)
}

// session returns the session stored by RequireSession. A missing session
// means the route was mounted without the middleware; treat it as logged out.
func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, false
	}
	return session, true
}
