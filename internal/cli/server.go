package cli

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"etfhistory/internal/history"
	"etfhistory/internal/instrument"
	"etfhistory/internal/pipeline"
	"etfhistory/internal/series"
)

type resolveResponse struct {
	Resolved instrument.Resolved `json:"resolved"`
	OK       bool                `json:"ok"`
}

type historyRow struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

type historyResponse struct {
	Name     string              `json:"name"`
	Ticker   string              `json:"ticker"`
	Sector   string              `json:"sector"`
	Currency string              `json:"currency"`
	Resolved instrument.Resolved `json:"resolved"`
	Meta     history.Meta        `json:"meta"`
	Rows     []historyRow        `json:"rows"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type server struct {
	runner *pipeline.Runner
	log    zerolog.Logger
	now    func() time.Time
}

// NewServer routes the HTTP API onto runner's resolver and fetcher.
func NewServer(runner *pipeline.Runner, log zerolog.Logger, now func() time.Time) http.Handler {
	if now == nil {
		now = time.Now
	}
	s := &server{runner: runner, log: log.With().Str("component", "http").Logger(), now: now}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.SetHeader("Content-Type", "application/json; charset=utf-8"))
	r.Use(middleware.Compress(5))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/resolve", s.handleResolve)
		r.Get("/history", s.handleHistory)
	})
	return r
}

func (s *server) query(r *http.Request) (instrument.Query, bool) {
	q := instrument.NewQuery(r.URL.Query().Get("id"), r.URL.Query().Get("name"))
	return q, q.RawIdentifier != "" || q.DisplayName != ""
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing id or name query param")
		return
	}
	res := s.runner.Resolver.Resolve(r.Context(), q)
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusNotFound
	}
	writeJSON(w, status, resolveResponse{Resolved: res, OK: res.OK()})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing id or name query param")
		return
	}
	rng := series.DefaultRange(s.now())
	for param, dst := range map[string]*time.Time{"from": &rng.From, "to": &rng.To} {
		v := r.URL.Query().Get(param)
		if v == "" {
			continue
		}
		d, err := time.Parse(series.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+param+" date, want YYYY-MM-DD")
			return
		}
		*dst = d
	}
	if rng.To.Before(rng.From) {
		writeError(w, http.StatusBadRequest, "from is after to")
		return
	}

	runner := *s.runner
	runner.Range = rng
	res := runner.Process(r.Context(), q)
	if !res.Resolved.OK() {
		writeJSON(w, http.StatusNotFound, historyResponse{Resolved: res.Resolved, Rows: []historyRow{}})
		return
	}
	resp := historyResponse{Resolved: res.Resolved, Meta: res.Meta, Rows: make([]historyRow, 0, len(res.Rows))}
	for _, row := range res.Rows {
		resp.Name, resp.Ticker, resp.Sector, resp.Currency = row.Name, row.Ticker, row.Sector, row.Currency
		resp.Rows = append(resp.Rows, historyRow{Date: row.Date.Format(series.DateLayout), Close: row.Close})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
