package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/promptcraft/internal/chat"
	"github.com/sakif/promptcraft/internal/middleware"
	"github.com/sakif/promptcraft/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Pages renders the HTML templates embedded in the binary.
type Pages struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// NewPages parses every template once at startup.
func NewPages(logger *slog.Logger) (*Pages, error) {
	tmpl, err := template.New("pages").
		Funcs(template.FuncMap{"highlight": chat.Highlight}).
		ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("handler: parsing templates: %w", err)
	}
	return &Pages{tmpl: tmpl, logger: logger}, nil
}

// pageData is the single view model shared by all templates.
type pageData struct {
	Title     string
	Username  string
	CSRFToken string
	Error     string

	// login / signup forms
	Email        string
	FormUsername string

	// index
	Turns []turnView

	// error page
	Status     int
	StatusText string
}

// turnView is a ChatTurn prepared for the index template.
type turnView struct {
	Index        int
	Role         string
	Kind         string
	Text         string
	IsError      bool
	Downloadable bool
}

// transcriptView prepends the greeting and marks which turns link to downloads.
func transcriptView(turns []model.ChatTurn) []turnView {
	views := make([]turnView, 0, len(turns)+1)
	for _, t := range append([]model.ChatTurn{chat.Greeting()}, turns...) {
		views = append(views, turnView{
			Index:        t.Index,
			Role:         string(t.Role),
			Kind:         string(t.Kind),
			Text:         t.Text,
			IsError:      t.IsError(),
			Downloadable: t.Index >= 0 && t.Role == model.RoleAssistant && t.Kind == model.KindMessage,
		})
	}
	return views
}

// newPageData fills the fields every page needs.
func newPageData(r *http.Request, title, username string) pageData {
	return pageData{
		Title:     title,
		Username:  username,
		CSRFToken: middleware.CSRFToken(r),
	}
}

// render executes the named template into a buffer first, so a template
// error never leaves a half-written page behind.
func (p *Pages) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, genericErrorMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// renderStatus renders the error page for a bare status code.
func (p *Pages) renderStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := newPageData(r, http.StatusText(status), "")
	data.Status = status
	data.StatusText = http.StatusText(status)
	data.Error = message
	p.render(w, status, "error", data)
}

// renderError maps err to a status and renders the error page. Server-side
// failures are logged with the request context; client errors are not.
func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		p.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	p.renderStatus(w, r, status, messageFor(err))
}

// Error renders the error page for err. Wired as RequireSession's error hook.
func (p *Pages) Error(w http.ResponseWriter, r *http.Request, err error) {
	p.renderError(w, r, err)
}

// TooManyRequests renders the 429 page. Wired as the rate limiter's reject hook.
func (p *Pages) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	p.renderStatus(w, r, http.StatusTooManyRequests, "You are sending messages too quickly. Please wait a moment and try again.")
}

// NotFound renders the 404 page for unknown routes.
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.renderStatus(w, r, http.StatusNotFound, "Page not found")
}
