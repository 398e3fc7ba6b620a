package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"forbias/internal/util"
	"forbias/pkg/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	message  *template.Template
	browse   *template.Template
	notFound *template.Template
}

func loadPages() (*pages, error) {
	funcs := template.FuncMap{
		"date": func(ms int64) string {
			return time.UnixMilli(ms).UTC().Format("Jan 2, 2006")
		},
		"permalink": func(id string) string {
			return "/messages/" + url.PathEscape(id)
		},
	}
	parse := func(name string) (*template.Template, error) {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		return t, nil
	}
	var p pages
	var err error
	if p.message, err = parse("message.html"); err != nil {
		return nil, err
	}
	if p.browse, err = parse("browse.html"); err != nil {
		return nil, err
	}
	if p.notFound, err = parse("not_found.html"); err != nil {
		return nil, err
	}
	return &p, nil
}

type messagePage struct {
	Title    string
	Message  domain.Message
	Links    domain.Links
	HasLiked bool
}

type browsePage struct {
	Title     string
	Recipient string
	Items     []domain.Message
}

type notFoundPage struct {
	Title string
	Text  string
}

func (s *Server) handleMessagePage(w http.ResponseWriter, r *http.Request, browserID string) {
	rest := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/messages/"), "/message/")
	rest = strings.Trim(rest, "/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || (action != "" && action != "like") {
		s.renderNotFound(w, r)
		return
	}
	if action == "like" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if ok, _ := s.likeLimiter.Allow(r.Context(), "like|"+s.clientIP(r)); !ok {
			s.event(r, "web.like", "rate_limited")
		} else if _, _, err := s.app.LikeMessage(r.Context(), browserID, id); err != nil {
			util.LoggerFromContext(r.Context()).Error("store_write_failed", "path", r.URL.Path, "err", err)
		}
		http.Redirect(w, r, "/messages/"+url.PathEscape(id), http.StatusSeeOther)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	msg, err := s.app.GetMessage(r.Context(), id)
	if err != nil {
		s.renderNotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, s.pages.message, messagePage{
		Title:    "For " + msg.RecipientName,
		Message:  msg,
		Links:    domain.BuildLinks(s.baseURL(r), msg),
		HasLiked: s.app.HasLiked(r.Context(), browserID, msg.ID),
	})
}

func (s *Server) handleBrowsePage(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	recipient := strings.TrimSpace(r.URL.Query().Get("recipient"))
	title := "Browse messages"
	if recipient != "" {
		title = "Messages for " + recipient
	}
	s.render(w, r, http.StatusOK, s.pages.browse, browsePage{
		Title:     title,
		Recipient: recipient,
		Items:     s.app.ListMessages(r.Context(), recipient),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ string) {
	if r.URL.Path != "/" {
		s.renderNotFound(w, r)
		return
	}
	http.Redirect(w, r, "/browse", http.StatusFound)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, s.pages.notFound, notFoundPage{
		Title: "Not found",
		Text:  "Message not found.",
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		util.LoggerFromContext(r.Context()).Error("render_failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
