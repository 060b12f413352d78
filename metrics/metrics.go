package metrics

import (
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GamesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_games_started_total",
			Help: "Total number of games created by players",
		},
	)

	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_submitted_total",
			Help: "Total number of accepted answers by result (correct, wrong)",
		},
		[]string{"result"},
	)

	QuestionsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_questions_generated_total",
			Help: "Total number of questions stored by the generation worker",
		},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_generation_failures_total",
			Help: "Total number of generation requests that failed and were left for redelivery",
		},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_generation_duration_seconds",
			Help:    "Duration of the research-draft-review pipeline per game",
			Buckets: prometheus.DefBuckets,
		},
	)

	TokenCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_token_cache_hits_total",
			Help: "Bearer tokens resolved from the cache",
		},
	)

	TokenCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_token_cache_misses_total",
			Help: "Bearer tokens that required an identity provider exchange",
		},
	)
)

type Server struct {
	*http.Server
}

// SetupServer registers the collectors and serves /metrics and /healthz.
// pprof comes along via the net/http/pprof import.
func SetupServer() *Server {
	server := &http.Server{
		Addr:         ":6060",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		GamesStarted,
		AnswersSubmitted,
		QuestionsGenerated,
		GenerationFailures,
		GenerationDuration,
		TokenCacheHits,
		TokenCacheMisses,
	)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	http.HandleFunc("/healthz", healthzHandler)
	return &Server{server}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) Run() {
	_ = s.ListenAndServe()
}
