package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"forbias/internal/browsertoken"
	"forbias/internal/ratelimit"
	"forbias/internal/util"
	"forbias/pkg/domain"
	"forbias/pkg/store"
	"forbias/services/web/internal/app"
	"github.com/redis/go-redis/v9"
)

const rateWindow = time.Minute

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	Browsers                 *browsertoken.Issuer
	BrowserCookieName        string
	BrowserCookieSecure      bool
	PublicBaseURL            string
	TrustedProxies           *util.TrustedProxies
	RedisAddr                string
	RedisPassword            string
	SearchRateLimitPerMinute int
	LikeRateLimitPerMinute   int
}

// Server exposes the JSON API and the rendered pages.
type Server struct {
	app            *app.App
	browsers       *browsertoken.Issuer
	cookieName     string
	cookieSecure   bool
	publicBaseURL  string
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
	pages          *pages
	searchLimiter  ratelimit.Limiter
	likeLimiter    ratelimit.Limiter
	closers        []io.Closer
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Browsers == nil {
		return nil, errors.New("browser token issuer required")
	}
	cookieName := strings.TrimSpace(cfg.BrowserCookieName)
	if cookieName == "" {
		cookieName = "forbias_browser"
	}
	searchLimit := cfg.SearchRateLimitPerMinute
	if searchLimit <= 0 {
		searchLimit = 30
	}
	likeLimit := cfg.LikeRateLimitPerMinute
	if likeLimit <= 0 {
		likeLimit = 60
	}
	tmpl, err := loadPages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		browsers:       cfg.Browsers,
		cookieName:     cookieName,
		cookieSecure:   cfg.BrowserCookieSecure,
		publicBaseURL:  strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		pages:          tmpl,
	}

	var redisClient *redis.Client
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword})
		s.closers = append(s.closers, redisClient)
	}
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		if redisClient == nil {
			limiter, err := ratelimit.NewLocalLimiter(limit, rateWindow)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(redisClient, "forbias:web:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	if s.searchLimiter, err = newLimiter("search", searchLimit); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.likeLimiter, err = newLimiter("like", likeLimit); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("web", util.WithCORS(s.mux)))
}

// Close releases limiter connections.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", s.app.MetricsHandler())

	// api
	s.mux.Handle("/api/spotify/search", util.WithSecurityHeaders(http.HandlerFunc(s.handleSearch)))
	s.mux.Handle("/api/messages", s.api(s.handleMessages))
	s.mux.Handle("/api/messages/", s.api(s.handleMessageByID))

	// pages
	s.mux.Handle("/message/", s.page(s.handleMessagePage))
	s.mux.Handle("/messages/", s.page(s.handleMessagePage))
	s.mux.Handle("/browse", s.page(s.handleBrowsePage))
	s.mux.Handle("/", s.page(s.handleRoot))
}

type browserHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) api(next browserHandler) http.Handler {
	return util.WithSecurityHeaders(s.withBrowser(next))
}

func (s *Server) page(next browserHandler) http.Handler {
	return util.WithPageSecurityHeaders(s.withBrowser(next))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter is required")
		return
	}
	if !s.allowRate(w, r, s.searchLimiter, "search|"+s.clientIP(r), "too many search requests") {
		s.event(r, "web.search", "rate_limited")
		return
	}
	tracks, err := s.app.SearchTracks(r.Context(), query)
	if err != nil {
		s.event(r, "web.search", "fail", "err", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to search tracks")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, _ string) {
	switch r.Method {
	case http.MethodGet:
		items := s.app.ListMessages(r.Context(), r.URL.Query().Get("recipient"))
		writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
	case http.MethodPost:
		var draft domain.Draft
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		msg, err := s.app.CreateMessage(r.Context(), draft)
		if err != nil {
			writeStoreError(w, r, err, "failed to save message")
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleMessageByID(w http.ResponseWriter, r *http.Request, browserID string) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/messages/"), "/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" || len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if len(parts) == 2 {
		if parts[1] != "like" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleLike(w, r, browserID, id)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	msg, err := s.app.GetMessage(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, s.messageView(r, browserID, msg))
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request, browserID, id string) {
	if !s.allowRate(w, r, s.likeLimiter, "like|"+s.clientIP(r), "too many like requests") {
		s.event(r, "web.like", "rate_limited")
		return
	}
	msg, liked, err := s.app.LikeMessage(r.Context(), browserID, id)
	if err != nil {
		writeStoreError(w, r, err, "failed to record like")
		return
	}
	resp := likeResponse{HasLiked: liked}
	if liked {
		view := s.messageView(r, browserID, msg)
		view.HasLiked = true
		resp.Message = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) messageView(r *http.Request, browserID string, msg domain.Message) messageResponse {
	return messageResponse{
		Message:  msg,
		Links:    domain.BuildLinks(s.baseURL(r), msg),
		HasLiked: s.app.HasLiked(r.Context(), browserID, msg.ID),
	}
}

// withBrowser resolves the browser id from the signed cookie, issuing a new
// one when the cookie is missing or does not verify.
func (s *Server) withBrowser(next browserHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(s.cookieName); err == nil {
			if id, err := s.browsers.Verify(c.Value); err == nil {
				next(w, r, id)
				return
			}
		}
		id, token, err := s.browsers.Issue()
		if err != nil {
			util.LoggerFromContext(r.Context()).Error("browser_token_issue_failed", "err", err)
			next(w, r, "")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     s.cookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.browsers.TTL().Seconds()),
			HttpOnly: true,
			Secure:   s.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		next(w, r, id)
	})
}

func (s *Server) baseURL(r *http.Request) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

func (s *Server) event(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	util.LoggerFromContext(r.Context()).Warn("web_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, key, msg string) bool {
	ok, wait := limiter.Allow(r.Context(), key)
	if ok {
		return true
	}
	w.Header().Set("Retry-After", retryAfter(wait))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// retryAfter renders wait in whole seconds, rounding up. An unknown wait asks
// for a full window.
func retryAfter(wait time.Duration) string {
	if wait <= 0 {
		wait = rateWindow
	}
	return strconv.Itoa(int((wait + time.Second - 1) / time.Second))
}

type listResponse struct {
	Items []domain.Message `json:"items"`
	Count int              `json:"count"`
}

type messageResponse struct {
	domain.Message
	Links    domain.Links `json:"links"`
	HasLiked bool         `json:"hasLiked"`
}

type likeResponse struct {
	Message  *messageResponse `json:"message,omitempty"`
	HasLiked bool             `json:"hasLiked"`
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, store.ErrNoMedium) {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	util.LoggerFromContext(r.Context()).Error("store_write_failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, msg)
}
