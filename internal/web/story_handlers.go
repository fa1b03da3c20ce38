package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyweaver/server/internal/config"
	"storyweaver/server/internal/document"
	"storyweaver/server/internal/engine"
	"storyweaver/server/internal/outline"
	"storyweaver/server/internal/session"
	"storyweaver/server/internal/storage"
)

// OutlineResponse carries the generated outline and its editable form.
type OutlineResponse struct {
	Generated string           `json:"generated"`
	Modified  string           `json:"modified"`
	Outline   *outline.Outline `json:"outline"`
}

// StoryResponse carries a finished story.
type StoryResponse struct {
	FullStory string                `json:"full_story"`
	HTML      string                `json:"html"`
	Chapters  []session.ChapterText `json:"chapters"`
	Pages     int                   `json:"pages"`
}

func (h *Handlers) requireEngine(w http.ResponseWriter) bool {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, config.ErrMissingCredentials.Error())
		return false
	}
	return true
}

// workflowError maps engine errors to HTTP answers.
func (h *Handlers) workflowError(w http.ResponseWriter, err error, failure string) {
	switch {
	case errors.Is(err, engine.ErrInvalidParameters):
		writeError(w, http.StatusBadRequest, "Please fill in all the inputs.")
	case errors.Is(err, engine.ErrOutlineNotGenerated), errors.Is(err, engine.ErrStoryNotGenerated):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrEmptyOutline):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", failure, err))
	}
}

func (h *Handlers) outlineResponse(st *session.State) (*OutlineResponse, error) {
	o, err := h.engine.Outline(st)
	if err != nil {
		return nil, err
	}
	return &OutlineResponse{Generated: st.Outline, Modified: st.ModifiedOutline, Outline: o}, nil
}

// GenerateOutline asks the generation service for a new outline
func (h *Handlers) GenerateOutline(w http.ResponseWriter, r *http.Request) {
	if !h.requireEngine(w) {
		return
	}
	st := sessionFrom(r.Context())

	if err := h.engine.GenerateOutline(r.Context(), st); err != nil {
		h.workflowError(w, err, "An error occurred while generating the outline")
		return
	}
	if h.hub != nil {
		h.hub.Clear(st.ID)
	}
	if !h.save(w, r, st) {
		return
	}

	resp, err := h.outlineResponse(st)
	if err != nil {
		h.workflowError(w, err, "An error occurred while generating the outline")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Story outline generated successfully!", Data: resp})
}

func (h *Handlers) GetOutline(w http.ResponseWriter, r *http.Request) {
	if !h.requireEngine(w) {
		return
	}
	resp, err := h.outlineResponse(sessionFrom(r.Context()))
	if err != nil {
		h.workflowError(w, err, "failed to load outline")
		return
	}
	writeData(w, resp)
}

// EditOutline replaces the editable outline
func (h *Handlers) EditOutline(w http.ResponseWriter, r *http.Request) {
	if !h.requireEngine(w) {
		return
	}
	var edited outline.Outline
	if err := decodeJSON(r, &edited); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st := sessionFrom(r.Context())
	if err := h.engine.EditOutline(st, &edited); err != nil {
		h.workflowError(w, err, "failed to edit outline")
		return
	}
	if !h.save(w, r, st) {
		return
	}

	resp, err := h.outlineResponse(st)
	if err != nil {
		h.workflowError(w, err, "failed to edit outline")
		return
	}
	writeData(w, resp)
}

func storyResponse(st *session.State) (*StoryResponse, error) {
	html, err := document.RenderHTML(st.FullStory)
	if err != nil {
		return nil, err
	}
	return &StoryResponse{FullStory: st.FullStory, HTML: html, Chapters: st.Chapters, Pages: st.DocumentPages}, nil
}

// GenerateFullStory writes every chapter and answers once the document is
// ready. Progress is published to the hub while it runs.
func (h *Handlers) GenerateFullStory(w http.ResponseWriter, r *http.Request) {
	if !h.requireEngine(w) {
		return
	}
	st := sessionFrom(r.Context())

	var progress engine.ProgressFunc
	if h.hub != nil {
		h.hub.Clear(st.ID)
		progress = h.hub.Publish
	}

	if err := h.engine.GenerateFullStory(r.Context(), st, progress); err != nil {
		h.workflowError(w, err, "An error occurred while generating the full story")
		return
	}
	if !h.save(w, r, st) {
		return
	}

	resp, err := storyResponse(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Full story generated successfully!", Data: resp})
}

func (h *Handlers) GetFullStory(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if !st.FullStoryGenerated {
		writeError(w, http.StatusConflict, engine.ErrStoryNotGenerated.Error())
		return
	}
	resp, err := storyResponse(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, resp)
}

func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	p := engine.Progress{SessionID: st.ID, Total: st.Settings.NumChapters}
	if h.hub != nil {
		if latest, ok := h.hub.Latest(st.ID); ok {
			p = latest
		}
	}
	if st.FullStoryGenerated && !p.Done {
		p = engine.Progress{SessionID: st.ID, Chapter: len(st.Chapters), Total: len(st.Chapters), Fraction: 1, Done: true}
	}
	writeData(w, p)
}

// ProgressStream upgrades to a WebSocket that receives the session's
// progress updates.
func (h *Handlers) ProgressStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Hub not initialized")
		return
	}
	st := sessionFrom(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:        uuid.NewString(),
		SessionID: st.ID,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		Hub:       h.hub,
	}
	h.hub.register <- client

	go client.readPump()
}

func writePDF(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", document.FileName(name)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DownloadStory serves the session's PDF as an attachment
func (h *Handlers) DownloadStory(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if !st.FullStoryGenerated || len(st.Document) == 0 {
		writeError(w, http.StatusConflict, engine.ErrStoryNotGenerated.Error())
		return
	}

	name := h.config.Document.DefaultFileName
	if q, ok := r.URL.Query()["name"]; ok {
		name = q[0]
	}
	writePDF(w, name, st.Document)
}

func (h *Handlers) requireArchive(w http.ResponseWriter) bool {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "story archive not configured")
		return false
	}
	return true
}

func (h *Handlers) ListArchivedStories(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stories, err := h.archive.ListStories(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list stories", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list stories")
		return
	}
	writeData(w, stories)
}

func (h *Handlers) GetArchivedStory(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w) {
		return
	}
	story, err := h.archive.GetStory(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrStoryNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to load story", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load story")
		return
	}
	writeData(w, story)
}

func (h *Handlers) DeleteArchivedStory(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.archive.DeleteStory(r.Context(), id)
	if errors.Is(err, storage.ErrStoryNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to delete story", zap.String("story_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete story")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "story deleted"})
}

func (h *Handlers) DownloadArchivedStory(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w) {
		return
	}
	story, err := h.archive.GetStory(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrStoryNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to load story", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load story")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = story.Title
	}
	writePDF(w, name, story.Document)
}
