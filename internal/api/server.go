package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autotag/internal/logging"
	"autotag/internal/queue"
	"autotag/internal/review"
	"autotag/internal/stage"
	"autotag/internal/workflow"
)

// Workflow is the worker and queue control surface.
type Workflow interface {
	Start(ctx context.Context, concurrency int) error
	Pause()
	Resume()
	Stop()
	Status(ctx context.Context) workflow.StatusSummary
	Health(ctx context.Context) []stage.Health
	QueueUntagged(ctx context.Context, priority int) (int, error)
	QueueSpecific(ctx context.Context, mediaIDs []int64, priority int) (int, error)
	QueueAll(ctx context.Context, priority int) (int, error)
	RetryFailed(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	ResetStuck(ctx context.Context) (int64, error)
	Dequeue(ctx context.Context, mediaIDs []int64) (int64, error)
}

// QueueLister reads queue rows for display.
type QueueLister interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
}

// Reviews is the human review surface.
type Reviews interface {
	ListByStatus(ctx context.Context, status queue.ReviewStatus, page, pageSize int) (review.Page, error)
	ApproveWithEdits(ctx context.Context, mediaID int64, edits review.Edits) (review.Outcome, error)
	Reject(ctx context.Context, mediaID int64) error
	ApproveMany(ctx context.Context, mediaIDs []int64) review.BulkResult
	RejectMany(ctx context.Context, mediaIDs []int64) review.BulkResult
	Stats(ctx context.Context) (review.Stats, error)
}

// Options configures a Server.
type Options struct {
	Bind     string
	Token    string
	Workflow Workflow
	Queue    QueueLister
	Reviews  Reviews
	Logger   *slog.Logger
	// RunContext bounds workers started through the API. Request contexts
	// end with the request, so they cannot be used.
	RunContext context.Context
}

// Server serves the HTTP API.
type Server struct {
	bind     string
	token    string
	workflow Workflow
	queue    QueueLister
	reviews  Reviews
	logger   *slog.Logger
	runCtx   context.Context
	router   *mux.Router
}

// NewServer builds the router for the given services.
func NewServer(opts Options) (*Server, error) {
	if opts.Workflow == nil || opts.Reviews == nil || opts.Queue == nil {
		return nil, errors.New("api server requires workflow, queue and review services")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	runCtx := opts.RunContext
	if runCtx == nil {
		runCtx = context.Background()
	}
	s := &Server{
		bind:     opts.Bind,
		token:    opts.Token,
		workflow: opts.Workflow,
		queue:    opts.Queue,
		reviews:  opts.Reviews,
		logger:   logging.NewComponentLogger(logger, "api"),
		runCtx:   runCtx,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware(s.token, s.logger))

	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/worker/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/worker/pause", s.handlePause).Methods(http.MethodPost)
	api.HandleFunc("/worker/resume", s.handleResume).Methods(http.MethodPost)
	api.HandleFunc("/worker/stop", s.handleStop).Methods(http.MethodPost)

	api.HandleFunc("/queue", s.handleQueueList).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleQueueSpecific).Methods(http.MethodPost)
	api.HandleFunc("/queue/untagged", s.handleQueueUntagged).Methods(http.MethodPost)
	api.HandleFunc("/queue/all", s.handleQueueAll).Methods(http.MethodPost)
	api.HandleFunc("/queue/retry", s.handleRetryFailed).Methods(http.MethodPost)
	api.HandleFunc("/queue/clear", s.handleClearFailed).Methods(http.MethodPost)
	api.HandleFunc("/queue/reset-stuck", s.handleResetStuck).Methods(http.MethodPost)
	api.HandleFunc("/queue/{mediaId:[0-9]+}", s.handleDequeue).Methods(http.MethodDelete)

	api.HandleFunc("/reviews", s.handleReviewList).Methods(http.MethodGet)
	api.HandleFunc("/reviews/approve", s.handleApproveMany).Methods(http.MethodPost)
	api.HandleFunc("/reviews/reject", s.handleRejectMany).Methods(http.MethodPost)
	api.HandleFunc("/reviews/{mediaId:[0-9]+}/approve", s.handleApprove).Methods(http.MethodPost)
	api.HandleFunc("/reviews/{mediaId:[0-9]+}/reject", s.handleReject).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusNotFound, Envelope{Error: "route not found"})
	})
	return r
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.bind,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("api listening", logging.String("bind", s.bind), logging.Bool("auth", s.token != ""))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(s.logger, "api shutdown incomplete", "api_shutdown_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "in-flight API requests were dropped"),
		)
		return err
	}
	s.logger.Info("api stopped")
	return nil
}
