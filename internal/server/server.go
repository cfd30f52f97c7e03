package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jpalmerr/lettersync"
	"github.com/jpalmerr/lettersync/internal/csrf"
	"github.com/jpalmerr/lettersync/internal/store"
	"github.com/jpalmerr/lettersync/web"
)

const (
	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Letters"

	// maxRequestBodySize bounds JSON request bodies.
	maxRequestBodySize = 1 << 20 // 1MB

	shutdownTimeout = 5 * time.Second
)

// Server serves the letter-status pages and the JSON API the sync client
// polls.
//
// Routes:
//   - GET /letter_status: letter table with status badges, sidebar and CSRF token
//   - GET /login: sign-in page without the sidebar
//   - GET /api/letters: every letter as JSON
//   - POST /api/letter-status: statuses for the requested letter numbers
//   - POST /api/letters/{number}/status: change a letter's status
//
// POST routes require a valid token in the X-CSRFToken header.
type Server struct {
	store      store.Store
	tokens     *csrf.Tokens
	port       int
	templates  *template.Template
	title      string
	logger     *slog.Logger
	httpServer *http.Server

	mu   sync.Mutex
	addr string
	done chan struct{}
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: letter storage
//   - tokens: CSRF token set; a new one with the default TTL is used if nil
//   - port: TCP port to listen on; 0 lets the OS choose
//   - title: page title (defaults to "Letters" if empty)
//   - logger: logger for request and server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, tokens *csrf.Tokens, port int, title string, logger *slog.Logger) (*Server, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if tokens == nil {
		tokens = csrf.New(csrf.DefaultTTL)
	}
	if title == "" {
		title = defaultTitle
	}
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	return &Server{
		store:     st,
		tokens:    tokens,
		port:      port,
		templates: tmpl,
		title:     title,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Router creates and configures the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/letter_status", http.StatusFound)
	})
	r.Get("/letter_status", s.handleLetterStatusPage)
	r.Get("/login", s.handleLoginPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/letters", s.handleListLetters)

		r.Group(func(r chi.Router) {
			r.Use(s.requireCSRF)
			r.Post("/letter-status", s.handleLetterStatus)
			r.Post("/letters/{number}/status", s.handleSetStatus)
		})
	})

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end when ctx does
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("letter status server listening", "addr", s.Addr())
	return nil
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Done is closed once the server has shut down after its context ended.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Tokens returns the server's CSRF token set.
func (s *Server) Tokens() *csrf.Tokens {
	return s.tokens
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// requireCSRF rejects requests without a valid X-CSRFToken header.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.tokens.Valid(r.Header.Get(csrf.HeaderName)) {
			s.respondError(w, http.StatusForbidden, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// letterRow is one table row of the letter-status page.
type letterRow struct {
	LetterNumber string
	Status       string
	Color        string
	Icon         string
}

type letterStatusPage struct {
	Title     string
	CSRFToken string
	Letters   []letterRow
}

func (s *Server) handleLetterStatusPage(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.All(r.Context())
	if err != nil {
		s.logger.Error("failed to list letters", "error", err)
		http.Error(w, "failed to list letters", http.StatusInternalServerError)
		return
	}

	data := letterStatusPage{
		Title:     s.title,
		CSRFToken: s.tokens.Issue(),
		Letters:   make([]letterRow, 0, len(entries)),
	}
	for _, e := range entries {
		p := lettersync.PresentationFor(lettersync.Status(e.Status))
		data.Letters = append(data.Letters, letterRow{
			LetterNumber: e.LetterNumber,
			Status:       e.Status,
			Color:        p.Color,
			Icon:         p.Icon,
		})
	}

	s.render(w, "letter_status.html", data)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", struct{ Title string }{Title: s.title})
}

// render writes the named page template; nothing is written on a template
// error.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("failed to write page response", "template", name, "error", err)
	}
}

// handleListLetters returns every letter.
func (s *Server) handleListLetters(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.All(r.Context())
	if err != nil {
		s.logger.Error("failed to list letters", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list letters")
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

type letterStatusRequest struct {
	LetterNumbers []string `json:"letter_numbers"`
}

// handleLetterStatus answers a sync poll with the statuses of the requested
// letters. Unknown letter numbers are left out of the response.
func (s *Server) handleLetterStatus(w http.ResponseWriter, r *http.Request) {
	var req letterStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entries, err := s.store.Statuses(r.Context(), req.LetterNumbers)
	if err != nil {
		s.logger.Error("failed to look up letter statuses",
			slog.Int("requested", len(req.LetterNumbers)),
			slog.String("error", err.Error()),
		)
		s.respondError(w, http.StatusInternalServerError, "failed to look up letter statuses")
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// handleSetStatus changes the status of one letter.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		s.respondError(w, http.StatusBadRequest, "status is required")
		return
	}

	ok, err := s.store.Set(r.Context(), number, req.Status)
	if err != nil {
		s.logger.Error("failed to set letter status",
			slog.String("letter_number", number),
			slog.String("error", err.Error()),
		)
		s.respondError(w, http.StatusInternalServerError, "failed to set letter status")
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "letter not found")
		return
	}

	s.logger.Info("letter status changed",
		slog.String("letter_number", number),
		slog.String("status", req.Status),
	)
	s.respondJSON(w, http.StatusOK, store.Entry{LetterNumber: number, Status: req.Status})
}

// decodeJSON reads a single JSON value of at most 1MB from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// errorResponse represents an error response
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response",
			slog.String("error", err.Error()),
		)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, errorResponse{Error: message})
}
