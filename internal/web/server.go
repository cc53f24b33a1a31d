// Package web provides the HTTP configuration surface of the coinbox
// daemon. Every mode or sample request is forwarded to the control loop
// through the scheduler's request queue; handlers never touch loop state
// directly. The listener lifecycle lives in netctl, which serves this
// handler while networking is up.
package web

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TuDo-Makerspace/Coinbox/internal/ringlog"
	"github.com/TuDo-Makerspace/Coinbox/internal/sched"
	"github.com/TuDo-Makerspace/Coinbox/internal/status"
	"github.com/TuDo-Makerspace/Coinbox/internal/store"
)

// Server holds the handler dependencies. The rings are read-only here;
// the control loop is the only writer.
type Server struct {
	sched   *sched.Scheduler
	tracker *status.Tracker
	lines   *ringlog.Lines
	raw     *ringlog.Values
	avg     *ringlog.Values

	router chi.Router
}

// New creates a Server and builds its route table.
func New(sc *sched.Scheduler, tracker *status.Tracker, lines *ringlog.Lines, raw, avg *ringlog.Values) *Server {
	s := &Server{
		sched:   sc,
		tracker: tracker,
		lines:   lines,
		raw:     raw,
		avg:     avg,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/status", s.handleStatus)

	r.Get("/config", s.handleConfig)
	r.Get("/measure", s.handleMeasure)
	r.Get("/restart", s.handleRestart)
	r.Get("/reset", s.handleReset)

	r.Post("/{index}", s.handleUpload)
	r.Get("/play{index}", s.handlePlay)

	r.Get("/dump", s.handleDump)
	r.Get("/log", s.handleLog)

	s.router = r
	return s
}

// Handler returns the root handler for netctl to serve.
func (s *Server) Handler() http.Handler {
	return s.router
}

// writeError maps scheduler and store errors onto the wire responses the
// configuration clients expect. wrongMode is the 403 body text, which
// differs between config-gated and merely mode-gated routes.
func writeError(w http.ResponseWriter, err error, wrongMode string) {
	switch {
	case errors.Is(err, sched.ErrWrongMode):
		http.Error(w, wrongMode, http.StatusForbidden)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrBadIndex):
		http.Error(w, "Sample not found", http.StatusNotFound)
	case errors.Is(err, store.ErrTooLarge):
		http.Error(w, "Sample exceeds 5s", http.StatusInsufficientStorage)
	case errors.Is(err, sched.ErrBusy):
		http.Error(w, "Sample already playing", http.StatusConflict)
	case errors.Is(err, sched.ErrShuttingDown):
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.EnterConfig(); err != nil {
		writeError(w, err, "Forbidden: Wrong mode")
		return
	}
	fmt.Fprint(w, "Entering Config mode...\n")
}

func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.EnterMeasure(); err != nil {
		writeError(w, err, "Forbidden: Wrong mode")
		return
	}
	fmt.Fprint(w, "Entering measurement mode...\n")
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Restart(); err != nil {
		writeError(w, err, "Forbidden: Wrong mode")
		return
	}
	fmt.Fprint(w, "Restarting...\n")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.ResetSamples(); err != nil {
		writeError(w, err, "Forbidden: Not in config mode")
		return
	}
	fmt.Fprint(w, "Resetting samples...\n")
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Sample not found", http.StatusNotFound)
		return
	}
	if err := s.sched.PlaySample(index); err != nil {
		writeError(w, err, "Forbidden: Wrong mode")
		return
	}
	fmt.Fprintf(w, "Playing sample %d\n", index)
}

// handleUpload streams the request body into a staged asset. The control
// loop only validates and stages the upload; the copy itself runs on the
// HTTP goroutine so a slow client cannot stall coin detection.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Sample not found", http.StatusNotFound)
		return
	}
	if r.ContentLength < 0 {
		http.Error(w, "Length required", http.StatusLengthRequired)
		return
	}

	up, err := s.sched.BeginUpload(index, r.ContentLength)
	if err != nil {
		writeError(w, err, "Forbidden: Not in config mode")
		return
	}

	if _, err := io.Copy(up, r.Body); err != nil {
		up.Abort()
		log.Printf("web: upload sample %d: %v", index, err)
		if errors.Is(err, store.ErrTooLarge) {
			http.Error(w, "Sample exceeds 5s", http.StatusInsufficientStorage)
			return
		}
		http.Error(w, "Upload failed", http.StatusInternalServerError)
		return
	}
	if err := up.Commit(); err != nil {
		log.Printf("web: commit sample %d: %v", index, err)
		http.Error(w, "Upload failed", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, "Sample uploaded successfully\n")
}

// handleDump emits the raw ring, an "Averaged:" marker and the averaged
// ring as plain integer lines. The plotting tools split on the marker,
// so nothing else may appear in the body.
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, v := range s.raw.Snapshot() {
		fmt.Fprintf(w, "%d\n", v)
	}
	fmt.Fprint(w, "Averaged:\n")
	for _, v := range s.avg.Snapshot() {
		fmt.Fprintf(w, "%d\n", v)
	}
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range s.lines.Snapshot() {
		fmt.Fprintln(w, line)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatJSON(snap))
}
