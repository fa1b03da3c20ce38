package web

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storyweaver/server/internal/config"
	"storyweaver/server/internal/engine"
	"storyweaver/server/internal/genres"
	"storyweaver/server/internal/models"
	"storyweaver/server/internal/session"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const catalogMissingMessage = "'genres.txt' file not found. Please upload the file to proceed."

// StoryArchive lists, loads and deletes archived stories.
type StoryArchive interface {
	ListStories(ctx context.Context, limit int) ([]models.Story, error)
	GetStory(ctx context.Context, id string) (*models.Story, error)
	DeleteStory(ctx context.Context, id string) error
}

// Dependencies are the services the router is built from. Catalog, Engine
// and Archive may be nil; the endpoints that need them then answer 503.
type Dependencies struct {
	Config   *config.Config
	Catalog  *genres.Catalog
	Sessions session.Store
	Engine   *engine.StoryEngine
	Archive  StoryArchive
	Hub      *ProgressHub
	Logger   *zap.Logger
}

type Handlers struct {
	config   *config.Config
	catalog  *genres.Catalog
	sessions session.Store
	engine   *engine.StoryEngine
	archive  StoryArchive
	hub      *ProgressHub
	logger   *zap.Logger
	validate *validator.Validate
}

func NewHandlers(deps Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handlers{
		config:   cfg,
		catalog:  deps.Catalog,
		sessions: deps.Sessions,
		engine:   deps.Engine,
		archive:  deps.Archive,
		hub:      deps.Hub,
		logger:   logger.With(zap.String("component", "web")),
		validate: validator.New(),
	}
}

// Response is the JSON envelope of every API answer.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":           "ok",
		"service":          "storyweaver",
		"catalog_loaded":   h.catalog != nil,
		"generation":       h.engine != nil,
		"archive":          h.archive != nil,
		"progress_client":  0,
		"progress_dropped": 0,
	}
	if h.hub != nil {
		status["progress_client"] = h.hub.ClientCount()
		status["progress_dropped"] = h.hub.Dropped()
	}
	if h.engine != nil {
		status["in_flight"] = h.engine.InFlight()
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: status})
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	indexPath := h.config.Server.IndexFile
	if indexPath == "" {
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "StoryWeaver API"})
		return
	}
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "index file not found")
		return
	}
	http.ServeFile(w, r, indexPath)
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+sessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", sessionHeader+", Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func NewRouter(deps Dependencies) *chi.Mux {
	h := NewHandlers(deps)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/", h.Home)
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/genres", h.ListGenres)
		r.Get("/genres/{name}/subgenres", h.ListSubgenres)
		r.Get("/options", h.GetOptions)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Group(func(r chi.Router) {
				r.Use(h.withSession)
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Put("/genre", h.SetGenre)
				r.Put("/settings", h.SetSettings)
				r.Post("/{kind}", h.AddEntry)
				r.Put("/{kind}/{id}", h.UpdateEntry)
				r.Delete("/{kind}/{id}", h.DeleteEntry)
			})
		})

		r.Route("/story", func(r chi.Router) {
			r.Use(h.withSession)
			r.Post("/outline", h.GenerateOutline)
			r.Get("/outline", h.GetOutline)
			r.Put("/outline", h.EditOutline)
			r.Post("/full", h.GenerateFullStory)
			r.Get("/full", h.GetFullStory)
			r.Get("/progress", h.GetProgress)
			r.Get("/progress/ws", h.ProgressStream)
			r.Get("/download", h.DownloadStory)
		})

		r.Route("/stories", func(r chi.Router) {
			r.Get("/", h.ListArchivedStories)
			r.Get("/{id}", h.GetArchivedStory)
			r.Delete("/{id}", h.DeleteArchivedStory)
			r.Get("/{id}/download", h.DownloadArchivedStory)
		})
	})

	return r
}
