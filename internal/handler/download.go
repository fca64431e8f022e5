package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/export"
)

// Download serves one transcript turn as an attachment.
//
// HTTP: GET /download/{index}/{format}   format ∈ {txt, pdf}
//
// The index counts stored turns from 0; the greeting is not addressable.
// A non-numeric index, an unknown format or an index outside the transcript
// is a 404.
func (h *ChatHandler) Download(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.pages.renderError(w, r, apperror.NotFound("chat turn", chi.URLParam(r, "index")))
		return
	}

	format, ok := export.ParseFormat(chi.URLParam(r, "format"))
	if !ok {
		h.pages.renderError(w, r, apperror.NotFound("download format", chi.URLParam(r, "format")))
		return
	}

	turn, err := h.engine.GetTurn(r.Context(), session, index)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	body, err := export.Render(format, turn.Text)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
