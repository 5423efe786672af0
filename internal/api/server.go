// Package api serves stored snapshots, quarter-over-quarter changes and
// cross-investor trends as read-only JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/analysis"
	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/snapshot"
)

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	Thresholds     analysis.Thresholds
	Trend          analysis.TrendOptions
}

// Server is the HTTP API server.
type Server struct {
	reader    snapshot.Reader
	investors []config.Investor
	opts      Options
	router    chi.Router
}

// NewServer builds a server over reader. investors restricts listings and
// trend aggregation to the configured table; empty means every stored
// investor.
func NewServer(reader snapshot.Reader, investors []config.Investor, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{reader: reader, investors: investors, opts: opts}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/investors", s.handleInvestors)
	r.Route("/investors/{id}", func(r chi.Router) {
		r.Get("/quarters", s.handleQuarters)
		r.Get("/snapshots/{quarter}", s.handleSnapshot)
		r.Get("/changes", s.handleChanges)
	})
	r.Get("/trending", s.handleTrending)

	return r
}

// Response is the JSON envelope of every reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// writeReadError maps reader and analysis errors to a status code.
func writeReadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "snapshot not found")
	case errors.Is(err, analysis.ErrNoBoundary):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]string{"status": "ok"})
}

func (s *Server) slugs() []string {
	out := make([]string, len(s.investors))
	for i, inv := range s.investors {
		out[i] = inv.Slug
	}
	return out
}

// InvestorSummary is one row of GET /investors.
type InvestorSummary struct {
	Slug          string           `json:"slug"`
	CIK           model.CIK        `json:"cik,omitempty"`
	Name          string           `json:"name,omitempty"`
	Quarters      int              `json:"quarters"`
	LatestQuarter model.QuarterKey `json:"latest_quarter,omitzero"`
}

func (s *Server) handleInvestors(w http.ResponseWriter, r *http.Request) {
	invs := s.investors
	if len(invs) == 0 {
		ids, err := s.reader.Investors(r.Context())
		if err != nil {
			writeReadError(w, r, err)
			return
		}
		for _, id := range ids {
			invs = append(invs, config.Investor{Slug: id})
		}
	}

	out := make([]InvestorSummary, 0, len(invs))
	for _, inv := range invs {
		qs, err := s.reader.Quarters(r.Context(), inv.Slug)
		if err != nil {
			writeReadError(w, r, err)
			return
		}
		row := InvestorSummary{Slug: inv.Slug, CIK: inv.CIK, Name: inv.Name, Quarters: len(qs)}
		if len(qs) > 0 {
			row.LatestQuarter = qs[len(qs)-1]
		}
		out = append(out, row)
	}
	writeData(w, out)
}

func (s *Server) handleQuarters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	qs, err := s.reader.Quarters(r.Context(), id)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	if len(qs) == 0 {
		writeError(w, http.StatusNotFound, "no snapshots for investor "+id)
		return
	}
	writeData(w, qs)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	q, err := model.ParseQuarterKey(chi.URLParam(r, "quarter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.reader.Load(r.Context(), chi.URLParam(r, "id"), q)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	writeData(w, snap)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prev, curr, ok := quarterPair(w, r, "from", "to")
	if !ok {
		return
	}
	if curr.IsZero() {
		var err error
		prev, curr, err = analysis.InvestorBoundary(r.Context(), s.reader, id)
		if err != nil {
			writeReadError(w, r, err)
			return
		}
	}

	set, err := analysis.InvestorChanges(r.Context(), s.reader, id, prev, curr, s.opts.Thresholds)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	writeData(w, set)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	prev, curr, ok := quarterPair(w, r, "previous", "quarter")
	if !ok {
		return
	}

	opt := s.opts.Trend
	if v := r.URL.Query().Get("min_investors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "min_investors must be a positive integer")
			return
		}
		opt.MinInvestors = n
	}
	if v := r.URL.Query().Get("min_value"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "min_value must be a non-negative integer")
			return
		}
		opt.MinValueDelta = n
	}

	var (
		report *model.TrendReport
		err    error
	)
	if curr.IsZero() {
		report, err = analysis.RunLatest(r.Context(), s.reader, s.slugs(), s.opts.Thresholds, opt)
	} else {
		report, err = analysis.TrendForQuarters(r.Context(), s.reader, s.slugs(), prev, curr, s.opts.Thresholds, opt)
	}
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	writeData(w, report)
}

// quarterPair reads an optional quarter boundary from the query string. With
// only the later quarter given, the earlier one is the quarter before it. Both
// zero means the caller picks the latest stored boundary.
func quarterPair(w http.ResponseWriter, r *http.Request, prevParam, currParam string) (prev, curr model.QuarterKey, ok bool) {
	q := r.URL.Query()
	rawPrev, rawCurr := q.Get(prevParam), q.Get(currParam)
	if rawCurr == "" {
		if rawPrev != "" {
			writeError(w, http.StatusBadRequest, prevParam+" requires "+currParam)
			return prev, curr, false
		}
		return prev, curr, true
	}

	curr, err := model.ParseQuarterKey(rawCurr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return prev, curr, false
	}
	prev = curr.Prev()
	if rawPrev != "" {
		if prev, err = model.ParseQuarterKey(rawPrev); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return prev, curr, false
		}
	}
	if !prev.Before(curr) {
		writeError(w, http.StatusBadRequest, prevParam+" must be before "+currParam)
		return prev, curr, false
	}
	return prev, curr, true
}
