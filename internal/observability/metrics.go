package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/docreview-backend/internal/platform/envutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	extractions   *CounterVec
	ocrJobs       *CounterVec
	issues        *CounterVec
	externalRuns  *CounterVec
	fixes         *CounterVec
	versionSaves  *CounterVec
	versionLists  *CounterVec
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	reviewLatency *HistogramVec

	redisUp *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reports METRICS_ENABLED.
func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current is the process-wide registry, nil when metrics are disabled. Every method is nil-safe.
func Current() *Metrics {
	return instance
}

// Init builds the registry once; it returns nil when METRICS_ENABLED is off.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics returns an unregistered registry; tests use it directly.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("docreview_api_requests_total", "API requests by route and status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("docreview_api_request_duration_seconds", "API request latency.", []string{"method", "route", "status"}, nil),
		apiInflight: NewGauge("docreview_api_inflight_requests", "API requests in flight."),

		extractions:   NewCounterVec("docreview_extractions_total", "Extractions by provenance of the returned text.", []string{"provenance"}),
		ocrJobs:       NewCounterVec("docreview_ocr_jobs_total", "OCR jobs by outcome.", []string{"outcome"}),
		issues:        NewCounterVec("docreview_issues_detected_total", "Detected issues by category and severity.", []string{"category", "severity"}),
		externalRuns:  NewCounterVec("docreview_external_analysis_total", "External model analysis runs by outcome.", []string{"outcome"}),
		fixes:         NewCounterVec("docreview_fixes_total", "Fix applications by category and status.", []string{"category", "status"}),
		versionSaves:  NewCounterVec("docreview_version_saves_total", "Version saves by status.", []string{"status"}),
		versionLists:  NewCounterVec("docreview_version_listings_total", "Version listings by result.", []string{"result"}),
		llmRequests:   NewCounterVec("docreview_llm_requests_total", "Generative model requests.", []string{"kind", "status"}),
		llmLatency:    NewHistogramVec("docreview_llm_request_duration_seconds", "Generative model latency.", []string{"kind", "status"}, nil),
		reviewLatency: NewHistogramVec("docreview_review_duration_seconds", "End-to-end review latency by provenance.", []string{"provenance"}, nil),

		redisUp: NewGauge("docreview_redis_up", "1 when the last redis ping succeeded."),
	}
}

// StartServer serves the exposition on addr until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.extractions, m.ocrJobs, m.issues, m.externalRuns, m.fixes,
		m.versionSaves, m.versionLists, m.llmRequests, m.llmLatency, m.reviewLatency,
		m.redisUp,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	s := strconv.Itoa(status)
	m.apiRequests.Inc(method, route, s)
	m.apiLatency.Observe(dur.Seconds(), method, route, s)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) IncExtraction(provenance string) {
	if m != nil {
		m.extractions.Inc(provenance)
	}
}

func (m *Metrics) IncOCRJob(outcome string) {
	if m != nil {
		m.ocrJobs.Inc(outcome)
	}
}

func (m *Metrics) IncIssue(category, severity string) {
	if m != nil {
		m.issues.Inc(category, severity)
	}
}

func (m *Metrics) IncExternalAnalysis(outcome string) {
	if m != nil {
		m.externalRuns.Inc(outcome)
	}
}

func (m *Metrics) IncFix(category, status string) {
	if m != nil {
		m.fixes.Inc(category, status)
	}
}

func (m *Metrics) IncVersionSave(status string) {
	if m != nil {
		m.versionSaves.Inc(status)
	}
}

func (m *Metrics) IncVersionListing(result string) {
	if m != nil {
		m.versionLists.Inc(result)
	}
}

func (m *Metrics) ObserveReview(provenance string, dur time.Duration) {
	if m != nil {
		m.reviewLatency.Observe(dur.Seconds(), provenance)
	}
}

func (m *Metrics) ObserveLLMRequest(kind, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(kind, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), kind, status)
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function, such as a redis client's Ping(ctx).Err(), to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// StartRedisCollector pings redis every METRICS_SCRAPE_INTERVAL_MS and records docreview_redis_up.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, p Pinger) {
	if m == nil || p == nil {
		return
	}
	interval := envutil.Millis("METRICS_SCRAPE_INTERVAL_MS", 10*time.Second)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.Ping(ctx); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}
