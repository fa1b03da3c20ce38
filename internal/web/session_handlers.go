package web

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storyweaver/server/internal/genres"
	"storyweaver/server/internal/session"
)

const sessionHeader = "X-Session-ID"

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.State {
	st, _ := ctx.Value(sessionKey{}).(*session.State)
	return st
}

func (h *Handlers) sessionID(r *http.Request) string {
	if id := r.Header.Get(sessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(h.config.Session.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handlers) bindSession(w http.ResponseWriter, st *session.State) {
	w.Header().Set(sessionHeader, st.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.Session.CookieName,
		Value:    st.ID,
		Path:     "/",
		MaxAge:   int(h.config.Session.TTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// withSession loads the caller's session, starting a fresh one when the id
// is missing or has expired.
func (h *Handlers) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var st *session.State
		var err error
		if id := h.sessionID(r); id != "" {
			st, err = h.sessions.Get(ctx, id)
			if err != nil && !errors.Is(err, session.ErrNotFound) {
				h.logger.Error("failed to load session", zap.String("session_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to load session")
				return
			}
		}
		if st == nil {
			st, err = h.sessions.Create(ctx)
			if err != nil {
				h.logger.Error("failed to create session", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to create session")
				return
			}
		}

		h.bindSession(w, st)
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey{}, st)))
	})
}

func (h *Handlers) save(w http.ResponseWriter, r *http.Request, st *session.State) bool {
	if err := h.sessions.Save(r.Context(), st); err != nil {
		h.logger.Error("failed to save session", zap.String("session_id", st.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return false
	}
	return true
}

// SessionView is the client-facing form of a session. The document bytes
// are only served by the download endpoint.
type SessionView struct {
	ID                 string           `json:"id"`
	Genre              string           `json:"genre"`
	Characters         []session.Entry  `json:"characters"`
	Plots              []session.Entry  `json:"plots"`
	Settings           session.Settings `json:"settings"`
	StoryGenerated     bool             `json:"story_generated"`
	FullStoryGenerated bool             `json:"full_story_generated"`
}

func viewOf(st *session.State) *SessionView {
	return &SessionView{
		ID:                 st.ID,
		Genre:              st.Genre,
		Characters:         st.Characters.Entries,
		Plots:              st.Plots.Entries,
		Settings:           st.Settings,
		StoryGenerated:     st.StoryGenerated,
		FullStoryGenerated: st.FullStoryGenerated,
	}
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.bindSession(w, st)
	writeJSON(w, http.StatusCreated, Response{Success: true, Data: viewOf(st)})
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	writeData(w, viewOf(sessionFrom(r.Context())))
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if err := h.sessions.Delete(r.Context(), st.ID); err != nil {
		h.logger.Error("failed to delete session", zap.String("session_id", st.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if h.hub != nil {
		h.hub.Clear(st.ID)
	}
	w.Header().Del(sessionHeader)
	http.SetCookie(w, &http.Cookie{Name: h.config.Session.CookieName, Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "session deleted"})
}

func (h *Handlers) ListGenres(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, catalogMissingMessage)
		return
	}
	writeData(w, map[string]any{"genres": h.catalog.Options()})
}

func (h *Handlers) ListSubgenres(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, catalogMissingMessage)
		return
	}
	name := chi.URLParam(r, "name")
	if _, ok := h.catalog.Subgenres(name); !ok {
		writeError(w, http.StatusNotFound, "unknown genre: "+name)
		return
	}
	writeData(w, map[string]any{"genre": name, "subgenres": h.catalog.SubgenreOptions(name)})
}

func (h *Handlers) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{
		"writing_styles": session.WritingStyles,
		"story_tones":    session.StoryTones,
		"languages":      session.Languages,
		"chapters":       map[string]int{"min": session.MinChapters, "max": session.MaxChapters},
		"complexity":     map[string]int{"min": session.MinComplexity, "max": session.MaxComplexity},
		"defaults":       session.DefaultSettings(),
	})
}

func (h *Handlers) SetGenre(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, catalogMissingMessage)
		return
	}

	var sel genres.Selection
	if err := decodeJSON(r, &sel); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !slices.Contains(h.catalog.Options(), sel.Genre) {
		writeError(w, http.StatusBadRequest, "unknown genre: "+sel.Genre)
		return
	}
	if sel.Subgenre != "" && !slices.Contains(h.catalog.SubgenreOptions(sel.Genre), sel.Subgenre) {
		writeError(w, http.StatusBadRequest, "unknown subgenre: "+sel.Subgenre)
		return
	}

	st := sessionFrom(r.Context())
	st.Genre = h.catalog.Resolve(sel)
	if !h.save(w, r, st) {
		return
	}
	writeData(w, map[string]string{"genre": st.Genre})
}

type settingsRequest struct {
	WritingStyle   string `json:"writing_style" validate:"required,oneof=Descriptive Minimalist Poetic Dramatic Humorous"`
	StoryTone      string `json:"story_tone" validate:"required,oneof=Serious Light-hearted Mysterious Inspirational Dark"`
	Complexity     int    `json:"complexity" validate:"min=1,max=10"`
	NumChapters    int    `json:"num_chapters" validate:"min=1,max=10"`
	Language       string `json:"language" validate:"required"`
	CustomLanguage string `json:"custom_language" validate:"required_if=Language Other"`
}

func (h *Handlers) SetSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !slices.Contains(session.Languages, req.Language) {
		writeError(w, http.StatusBadRequest, "unknown language: "+req.Language)
		return
	}

	st := sessionFrom(r.Context())
	st.Settings = session.Settings{
		WritingStyle:   req.WritingStyle,
		StoryTone:      req.StoryTone,
		Complexity:     req.Complexity,
		NumChapters:    req.NumChapters,
		Language:       req.Language,
		CustomLanguage: req.CustomLanguage,
	}
	if !h.save(w, r, st) {
		return
	}
	writeData(w, st.Settings)
}

func (h *Handlers) entryList(w http.ResponseWriter, r *http.Request, st *session.State) (*session.EntryList, bool) {
	list, ok := st.List(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown entry kind")
	}
	return list, ok
}

func entryID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) AddEntry(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	list, ok := h.entryList(w, r, st)
	if !ok {
		return
	}
	entry := list.Add()
	if !h.save(w, r, st) {
		return
	}
	writeJSON(w, http.StatusCreated, Response{Success: true, Data: entry})
}

type entryRequest struct {
	Text string `json:"text"`
}

func (h *Handlers) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	list, ok := h.entryList(w, r, st)
	if !ok {
		return
	}
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := list.SetText(id, req.Text); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !h.save(w, r, st) {
		return
	}
	writeData(w, session.Entry{ID: id, Text: req.Text})
}

func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	list, ok := h.entryList(w, r, st)
	if !ok {
		return
	}
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	if err := list.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !h.save(w, r, st) {
		return
	}
	writeData(w, list.Entries)
}
