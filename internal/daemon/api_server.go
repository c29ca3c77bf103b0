package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"shelfmark/internal/api"
	"shelfmark/internal/config"
	"shelfmark/internal/logging"
	"shelfmark/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := strings.TrimSpace(cfg.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bookmarks", authMiddleware(token, srv.handleBookmarks))
	mux.HandleFunc("/api/bookmarks/", authMiddleware(token, srv.handleBookmarkItem))
	mux.HandleFunc("/api/entities", authMiddleware(token, srv.handleEntities))
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBookmark(w, r)
	case http.MethodGet:
		s.handleListBookmarks(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req api.CreateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = api.DefaultUserID
	}
	rawURL := strings.TrimSpace(req.URL)
	if err := validateBookmarkURL(rawURL); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookmark, err := s.daemon.submitter.SubmitBookmark(r.Context(), userID, rawURL)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateBookmark) {
			existing, findErr := s.daemon.store.FindBookmarkByURL(r.Context(), userID, rawURL)
			if findErr == nil && existing != nil {
				s.writeJSON(w, http.StatusConflict, api.BookmarkResponse{Bookmark: api.FromBookmark(existing)})
				return
			}
			s.writeError(w, http.StatusConflict, "bookmark already exists")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.BookmarkResponse{Bookmark: api.FromBookmark(bookmark)})
}

func (s *apiServer) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("user_id"))
	if userID == "" {
		userID = api.DefaultUserID
	}

	var statuses []store.BookmarkStatus
	for _, value := range query["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := store.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown bookmark status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}

	bookmarks, err := s.daemon.store.ListBookmarks(r.Context(), userID, statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BookmarkListResponse{Bookmarks: api.FromBookmarks(bookmarks)})
}

func (s *apiServer) handleBookmarkItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/bookmarks/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid bookmark id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleBookmarkDetail(w, r, id)
	case action == "retry" && r.Method == http.MethodPost:
		s.handleBookmarkRetry(w, r, id)
	case action == "" || action == "retry":
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleBookmarkDetail(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()
	bookmark, err := s.daemon.store.GetBookmark(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bookmark == nil {
		s.writeError(w, http.StatusNotFound, "bookmark not found")
		return
	}

	links, err := s.daemon.store.LinksForBookmark(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entityLinks := make([]api.EntityLink, 0, len(links))
	for _, link := range links {
		entity, err := s.daemon.store.GetEntity(ctx, link.EntityID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		entityLinks = append(entityLinks, api.FromLink(link, entity))
	}

	images, err := s.daemon.store.ImagesForBookmark(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	apiImages := make([]api.Image, 0, len(images))
	for _, img := range images {
		apiImages = append(apiImages, api.FromImage(img))
	}

	s.writeJSON(w, http.StatusOK, api.BookmarkDetailResponse{
		Bookmark: api.FromBookmark(bookmark),
		Entities: entityLinks,
		Images:   apiImages,
	})
}

func (s *apiServer) handleBookmarkRetry(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()
	bookmark, err := s.daemon.store.GetBookmark(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bookmark == nil {
		s.writeError(w, http.StatusNotFound, "bookmark not found")
		return
	}

	retried, err := s.daemon.submitter.ResubmitBookmark(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if retried {
		bookmark, err = s.daemon.store.GetBookmark(ctx, id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, api.RetryResponse{
		Retried:  retried,
		Bookmark: api.FromBookmark(bookmark),
	})
}

func (s *apiServer) handleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("user_id"))
	if userID == "" {
		userID = api.DefaultUserID
	}

	var types []store.EntityType
	for _, value := range query["type"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		entityType, ok := store.ParseEntityType(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown entity type %q", trimmed))
			return
		}
		types = append(types, entityType)
	}

	ctx := r.Context()
	entities, err := s.daemon.store.ListEntities(ctx, userID, types...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]api.Entity, 0, len(entities))
	for _, entity := range entities {
		count, err := s.daemon.store.CountEntityLinks(ctx, entity.ID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, api.FromEntity(entity, count))
	}
	s.writeJSON(w, http.StatusOK, api.EntityListResponse{Entities: out})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = api.DefaultUserID
	}
	status := s.daemon.Status(r.Context(), userID)

	stats := make(map[string]int, len(status.BookmarkStats))
	for key, value := range status.BookmarkStats {
		stats[string(key)] = value
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Queue: api.QueueHealth{
			Queued:     status.Queue.Queued,
			Processing: status.Queue.Processing,
			Done:       status.Queue.Done,
			Dead:       status.Queue.Dead,
		},
		BookmarkStats: stats,
	})
}

func validateBookmarkURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url is missing a host")
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
