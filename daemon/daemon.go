// The collapse service: POST raw sacct text, get collapsed jobs back.  The service holds no state
// between requests beyond the immutable variants.

package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"sacctcollapse/collapse"
	"sacctcollapse/config"
	"sacctcollapse/derive"
	"sacctcollapse/metrics"
	"sacctcollapse/policy"
	"sacctcollapse/status"
	"sacctcollapse/table"
)

type Server struct {
	cfg     *config.Config
	engines map[string]*collapse.Engine
	limiter *rate.Limiter
	log     status.Logger
	router  chi.Router
}

func New(cfg *config.Config, version string, log status.Logger) (*Server, error) {
	costs, err := cfg.CostTable()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		engines: make(map[string]*collapse.Engine),
		log:     log.WithField("component", "daemon"),
	}
	for _, name := range collapse.VariantNames() {
		v, err := collapse.ByName(name, costs, log)
		if errors.Is(err, derive.ErrNoCosts) && name != cfg.Variant {
			s.log.Warningf("Variant %s disabled: %v", name, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.engines[name] = collapse.NewEngine(v, log)
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.Burst)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(countRequests)
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(s.rateLimit)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})

	api := humachi.New(r, huma.DefaultConfig("sacctcollapse", version))
	s.register(api)
	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on %s", s.cfg.Server.Listen)
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Only the API is limited; metrics and health checks always answer.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && strings.HasPrefix(r.URL.Path, "/v1/") && !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(code)).Inc()
	})
}

type CollapseInput struct {
	Body struct {
		Variant   string `json:"variant,omitempty" enum:"first-pass,analytic" doc:"Collapse variant; the configured one if omitted"`
		Delimiter string `json:"delimiter,omitempty" doc:"Field delimiter, one character; the configured one if omitted"`
		Header    bool   `json:"header,omitempty" doc:"The first line of data names the columns"`
		Data      string `json:"data" doc:"Raw sacct output for one partition"`
	}
}

type CollapseBody struct {
	Variant     string                `json:"variant"`
	Rows        int                   `json:"rows"`
	Columns     []string              `json:"columns"`
	Output      string                `json:"output" doc:"Collapsed jobs, delimited text"`
	Diagnostics *collapse.Diagnostics `json:"diagnostics"`
	Leniency    map[string]int        `json:"leniency"`
}

type CollapseOutput struct {
	Body CollapseBody
}

type PolicyInput struct {
	Variant string `path:"variant" doc:"first-pass or analytic"`
}

type PolicyOutput struct {
	Body struct {
		Variant  string                `json:"variant"`
		ByteUnit string                `json:"byte_unit"`
		Columns  []policy.ColumnPolicy `json:"columns"`
	}
}

func (s *Server) register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:  "collapse",
		Method:       http.MethodPost,
		Path:         "/v1/collapse",
		Summary:      "Collapse one partition",
		MaxBodyBytes: s.cfg.Server.MaxBodyBytes,
	}, s.collapse)

	huma.Register(api, huma.Operation{
		OperationID: "get-policy",
		Method:      http.MethodGet,
		Path:        "/v1/policy/{variant}",
		Summary:     "Column reduction policy of a variant",
	}, s.policy)
}

func (s *Server) collapse(ctx context.Context, input *CollapseInput) (*CollapseOutput, error) {
	name := input.Body.Variant
	if name == "" {
		name = s.cfg.Variant
	}
	engine := s.engines[name]
	if engine == nil {
		if name == collapse.AnalyticName {
			return nil, huma.Error422UnprocessableEntity(
				fmt.Sprintf("variant %s is not available: %v", name, derive.ErrNoCosts))
		}
		return nil, huma.Error400BadRequest("unknown variant " + name)
	}

	format := s.cfg.Format()
	if d := input.Body.Delimiter; d != "" {
		if utf8.RuneCountInString(d) != 1 {
			return nil, huma.Error400BadRequest("delimiter must be one character")
		}
		format.Delimiter, _ = utf8.DecodeRuneInString(d)
	}
	var columns []string
	if !input.Body.Header {
		columns = policy.SacctColumns
	}

	started := time.Now()
	res, err := collapseText(ctx, engine, input.Body.Data, columns, format)
	var diag *collapse.Diagnostics
	if res != nil {
		diag = res.Diagnostics
	}
	metrics.ObservePartition(name, diag, time.Since(started), err)
	if err != nil {
		if errors.Is(err, table.ErrStructure) || errors.Is(err, derive.ErrUnknownCluster) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		s.log.Errorf("Collapse failed: %v", err)
		return nil, huma.Error500InternalServerError("collapse failed", err)
	}

	var buf bytes.Buffer
	if err := res.Write(&buf, format.Delimiter); err != nil {
		return nil, huma.Error500InternalServerError("rendering failed", err)
	}
	return &CollapseOutput{Body: CollapseBody{
		Variant:     res.Variant,
		Rows:        res.Table.NumRows(),
		Columns:     res.Table.Columns(),
		Output:      buf.String(),
		Diagnostics: res.Diagnostics,
		Leniency:    res.Diagnostics.LenientCounts(),
	}}, nil
}

func collapseText(ctx context.Context, e *collapse.Engine, data string, columns []string, f table.Format) (*collapse.Result, error) {
	t, err := table.Read(strings.NewReader(data), columns, f)
	if err != nil {
		return nil, err
	}
	res, err := e.Collapse(ctx, t)
	if err != nil {
		return nil, err
	}
	res.Diagnostics.InputBytes = int64(len(data))
	return res, nil
}

func (s *Server) policy(_ context.Context, input *PolicyInput) (*PolicyOutput, error) {
	engine := s.engines[input.Variant]
	if engine == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("no variant %q", input.Variant))
	}
	v := engine.Variant()
	out := &PolicyOutput{}
	out.Body.Variant = v.Name
	out.Body.ByteUnit = v.Bytes.String()
	out.Body.Columns = v.Policy.Describe()
	return out, nil
}
