// Package server exposes the review queue over HTTP: a small HTML
// dashboard for browsing and a JSON API for tooling.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/signalry/signalry/internal/database"
	"github.com/signalry/signalry/internal/model"
	"github.com/signalry/signalry/internal/momentum"
	"github.com/signalry/signalry/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const defaultListLimit = 50

// Server serves the dashboard and API.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"shortID": func(id string) string {
			if len(id) > 8 {
				return id[:8]
			}
			return id
		},
		"timeago": timeAgo,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page clones the base so it gets its own content/title blocks.
	pageNames := []string{"index.html", "items.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/items", s.handleItems)
	s.mux.HandleFunc("/report", s.handleReport)
	s.mux.HandleFunc("/queue/", s.handleQueueAction)

	s.mux.HandleFunc("/api/queue", s.apiQueue)
	s.mux.HandleFunc("/api/stats", s.apiStats)
	s.mux.HandleFunc("/api/momentum", s.apiMomentum)
	s.mux.HandleFunc("/api/items", s.apiItems)
	s.mux.HandleFunc("/api/signals/", s.apiSignalAction)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = model.StatusPending
	}

	var (
		items []model.ReviewItem
		err   error
	)
	if status == "all" {
		items, err = s.db.ListAll(defaultListLimit)
	} else {
		items, err = s.db.ListByStatus(status, defaultListLimit)
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	stats, _ := s.db.Stats()
	s.render(w, "index.html", map[string]any{
		"Items":  items,
		"Status": status,
		"Stats":  stats,
	})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.db.TopSignalItems(defaultListLimit)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "items.html", map[string]any{"Items": items})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	text, err := report.Build(s.db)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "report.html", map[string]any{"Report": text})
}

// handleQueueAction handles the dashboard's approve/discard form posts.
func (s *Server) handleQueueAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/queue/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	id, action := parts[0], parts[1]
	switch action {
	case "approve":
		s.db.Approve(id)
	case "discard":
		s.db.Discard(id)
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) apiQueue(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", defaultListLimit)

	var (
		items []model.ReviewItem
		err   error
	)
	switch status {
	case "", "all":
		items, err = s.db.ListAll(limit)
	default:
		items, err = s.db.ListByStatus(status, limit)
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []model.ReviewItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) apiStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) apiMomentum(w http.ResponseWriter, r *http.Request) {
	items, err := s.db.ListAll(1000)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}

	signals := make([]model.Signal, len(items))
	classifications := make([]model.Classification, len(items))
	for i, it := range items {
		signals[i] = it.Signal
		classifications[i] = it.Classification
	}

	clusters := momentum.Summarize(signals, classifications)
	if clusters == nil {
		clusters = []momentum.Cluster{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

func (s *Server) apiItems(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	items, err := s.db.TopSignalItems(limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []model.SignalItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// apiSignalAction routes POST /api/signals/{id}/{approve|discard|outcome|feedback}.
func (s *Server) apiSignalAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/signals/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		jsonError(w, http.StatusNotFound, errors.New("unknown route"))
		return
	}

	id, err := s.db.ResolveSignalID(parts[0])
	if err != nil {
		jsonError(w, statusFor(err), err)
		return
	}

	switch parts[1] {
	case "approve":
		err = s.db.Approve(id)
	case "discard":
		err = s.db.Discard(id)
	case "outcome":
		err = s.logOutcome(r, id)
	case "feedback":
		err = s.logFeedback(r, id)
	default:
		jsonError(w, http.StatusNotFound, errors.New("unknown action"))
		return
	}

	if err != nil {
		jsonError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signal_id": id, "ok": true})
}

func (s *Server) logOutcome(r *http.Request, id string) error {
	var body struct {
		Responded    bool   `json:"responded"`
		ResponseType string `json:"response_type"`
		Notes        string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}

	rt := model.ResponseType(body.ResponseType)
	if !rt.Valid() {
		return fmt.Errorf("invalid response_type %q", body.ResponseType)
	}

	return s.db.LogOutcome(model.Outcome{
		SignalID:     id,
		Responded:    body.Responded,
		ResponseType: rt,
		Notes:        body.Notes,
		LoggedAt:     time.Now().UTC(),
	})
}

func (s *Server) logFeedback(r *http.Request, id string) error {
	var body struct {
		Rating string `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return s.db.UpsertFeedback(id, body.Rating)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrAmbiguous), errors.Is(err, database.ErrAlreadyReviewed):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
