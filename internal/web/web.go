// Package web serves the consultation form to browsers. Each browser gets
// its own session, keyed by a cookie; the page polls record status at 1 Hz
// while a capture or transcription is in flight.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rbright/consult/internal/session"
	"github.com/rbright/consult/internal/summary"
)

// CookieName carries the browser's session ID.
const CookieName = "consult_session"

const maxFormBytes = 64 << 10

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

// Options tunes the form.
type Options struct {
	Title string
	// SecureCookie marks the session cookie Secure; set behind TLS.
	SecureCookie bool
}

// Server routes form actions to per-browser sessions.
type Server struct {
	registry *session.Registry
	logger   *slog.Logger
	opts     Options
}

func New(registry *session.Registry, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Title == "" {
		opts.Title = "Patient Consultation"
	}
	return &Server{registry: registry, logger: logger, opts: opts}
}

// Register adds the form routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /mode", s.handleMode)
	mux.HandleFunc("POST /input/text", s.handleText)
	mux.HandleFunc("POST /record/start", s.handleRecordStart)
	mux.HandleFunc("POST /record/stop", s.handleRecordStop)
	mux.HandleFunc("GET /record/status", s.handleStatus)
	mux.HandleFunc("POST /summary", s.handleSummary)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("POST /share", s.handleShare)
	mux.HandleFunc("POST /session/end", s.handleEnd)
}

// response is the JSON body of every form action.
type response struct {
	View  session.View `json:"view"`
	Error string       `json:"error,omitempty"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.State {
	id := ""
	if c, err := r.Cookie(CookieName); err == nil {
		id = c.Value
	}
	st, created := s.registry.GetOrCreate(r.Context(), id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    st.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   s.opts.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return st
}

type pageData struct {
	Title string
	View  session.View
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, pageData{Title: s.opts.Title, View: st.Snapshot()}); err != nil {
		s.logger.Error("render form failed", "error", err.Error())
	}
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	if err := parseForm(w, r); err != nil {
		s.reply(w, st, http.StatusBadRequest, err)
		return
	}
	mode, err := session.ParseMode(r.PostFormValue("mode"))
	if err != nil {
		s.reply(w, st, http.StatusBadRequest, err)
		return
	}
	st.SetMode(mode)
	s.reply(w, st, http.StatusOK, nil)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	if err := parseForm(w, r); err != nil {
		s.reply(w, st, http.StatusBadRequest, err)
		return
	}
	st.SetInputFromText(r.PostFormValue("text"))
	s.reply(w, st, http.StatusOK, nil)
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	err := st.StartRecording(r.Context())
	s.reply(w, st, statusFor(err), err)
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	st.StopRecording()
	s.reply(w, st, http.StatusOK, nil)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.session(w, r), http.StatusOK, nil)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	if err := parseForm(w, r); err != nil {
		s.reply(w, st, http.StatusBadRequest, err)
		return
	}
	if r.PostForm.Has("text") {
		st.SetInputFromText(r.PostFormValue("text"))
	}
	_, err := st.RequestSummary(r.Context())
	s.reply(w, st, statusFor(err), err)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	doc, ok := st.Document()
	if !ok {
		s.reply(w, st, statusFor(session.ErrNoDocument), session.ErrNoDocument)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	_, _ = w.Write(doc.Data)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	_, err := st.Share(r.Context())
	s.reply(w, st, statusFor(err), err)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		s.registry.End(r.Context(), c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reply(w http.ResponseWriter, st *session.State, status int, err error) {
	resp := response{View: st.Snapshot()}
	if err != nil {
		resp.Error = session.UserMessage(err).Text
		if status >= http.StatusInternalServerError {
			s.logger.Warn("form action failed", "session", st.ID(), "status", status, "error", err.Error())
		}
	}
	writeJSON(w, status, resp)
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}
	return nil
}

// statusFor maps session errors onto HTTP status codes. The body always
// carries the inline message.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrAlreadyRecording), errors.Is(err, session.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, session.ErrPersistence):
		return http.StatusInternalServerError
	case errors.Is(err, session.ErrServiceUnavailable), errors.Is(err, session.ErrSummaryUnavailable),
		errors.Is(err, summary.ErrEmptySummary):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
