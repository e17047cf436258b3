// Package invoke runs one sweep end to end and reduces the outcome to the
// status code and message an invoker sees.
package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/jobsweep/internal/analyzer"
	"github.com/FranksOps/jobsweep/internal/apperr"
	"github.com/FranksOps/jobsweep/internal/config"
	"github.com/FranksOps/jobsweep/internal/metrics"
	"github.com/FranksOps/jobsweep/internal/pipeline"
	"github.com/FranksOps/jobsweep/internal/queries"
	"github.com/FranksOps/jobsweep/internal/serp"
	"github.com/FranksOps/jobsweep/internal/storage"
)

// NoResultsMessage is returned with status 200 when nothing matched.
const NoResultsMessage = "No findings matched the configured keywords for the provided queries."

// Response is the invocation result. Body holds a JSON-encoded string.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Message decodes Body back to the plain message.
func (r Response) Message() string {
	var s string
	if err := json.Unmarshal([]byte(r.Body), &s); err != nil {
		return r.Body
	}
	return s
}

func newResponse(status int, msg string) Response {
	body, _ := json.Marshal(msg)
	return Response{StatusCode: status, Body: string(body)}
}

// ProviderFactory builds the search provider for a run.
type ProviderFactory func(cfg *config.Config) (serp.Provider, error)

// BackendOpener opens the result sink. It is only called when there is
// something to write.
type BackendOpener func(ctx context.Context, cfg *config.Config) (storage.Backend, error)

// Handler performs sweeps with a fixed configuration.
type Handler struct {
	Config      *config.Config
	Logger      *slog.Logger
	NewProvider ProviderFactory
	OpenBackend BackendOpener

	Now      func() time.Time
	NewRunID func() string
}

// Outcome describes a successful sweep.
type Outcome struct {
	RunID    string
	Key      string
	Location string // empty when nothing was written
	Stats    pipeline.Stats
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Invoke runs one sweep and never fails: every error becomes a 500 response.
func (h *Handler) Invoke(ctx context.Context) Response {
	runID := uuid.NewString()
	if h.NewRunID != nil {
		runID = h.NewRunID()
	}
	logger := h.logger().With("run_id", runID)

	out, err := h.Run(ctx, runID, logger)
	resp := ResponseFor(out, err)

	saved := 0
	if err == nil {
		saved = out.Stats.Findings
	}
	kind := ""
	if err != nil {
		kind = apperr.KindOf(err).String()
		logger.Error("sweep failed", "kind", kind, "error", err)
	} else {
		logger.Info("sweep finished", "findings", out.Stats.Findings, "location", out.Location)
	}
	metrics.RecordRun(resp.StatusCode, kind, saved, h.now())
	h.pushMetrics(ctx, logger)

	return resp
}

// HandleLambda adapts Invoke to the aws-lambda-go handler signature. The
// event payload is ignored.
func (h *Handler) HandleLambda(ctx context.Context, _ json.RawMessage) (Response, error) {
	return h.Invoke(ctx), nil
}

func (h *Handler) pushMetrics(ctx context.Context, logger *slog.Logger) {
	if h.Config == nil || h.Config.Metrics.PushURL == "" {
		return
	}
	m := h.Config.Metrics
	if err := metrics.Push(ctx, m.PushURL, m.Job, m.Instance); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}
}

// Run performs the sweep. Configuration is checked before the query file is
// read, and the backend is opened only when there are findings to save.
func (h *Handler) Run(ctx context.Context, runID string, logger *slog.Logger) (*Outcome, error) {
	cfg := h.Config
	if cfg == nil {
		return nil, apperr.Configf("no configuration loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if h.NewProvider == nil || h.OpenBackend == nil {
		return nil, apperr.New(apperr.KindUnexpected, "invoke", errors.New("handler is not fully wired"))
	}

	qs, err := queries.Load(cfg.QueryFile)
	if err != nil {
		return nil, err
	}
	logger.Info("queries loaded", "path", cfg.QueryFile, "count", len(qs))

	provider, err := h.NewProvider(cfg)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "", err)
	}

	p := &pipeline.Pipeline{
		Provider: provider,
		Matcher:  analyzer.NewMatcher(cfg.Keywords),
		MaxPages: cfg.Search.MaxPages,
		PageSize: cfg.Search.PageSize,
		Logger:   logger,
		Now:      h.Now,
	}
	res, err := p.Run(ctx, qs)
	if err != nil {
		return nil, err
	}

	out := &Outcome{RunID: runID, Stats: res.Stats}
	if len(res.Findings) == 0 {
		return out, nil
	}

	createdAt := h.now().UTC()
	batch := &storage.Batch{
		RunID:     runID,
		Key:       storage.ObjectKey(cfg.Storage.KeyPrefix, createdAt),
		CreatedAt: createdAt,
		Findings:  res.Findings,
	}
	out.Key = batch.Key

	backend, err := h.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, apperr.New(apperr.KindUnexpected, "open storage", err)
	}
	location, saveErr := backend.Save(ctx, batch)
	closeErr := backend.Close()
	if saveErr != nil {
		return nil, apperr.New(apperr.KindUnexpected, "save findings", saveErr)
	}
	if closeErr != nil {
		logger.Warn("closing storage failed", "error", closeErr)
	}
	out.Location = location
	return out, nil
}

// ResponseFor maps a sweep outcome to the invocation response.
func ResponseFor(out *Outcome, err error) Response {
	if err != nil {
		return newResponse(apperr.StatusCode(err), errorMessage(err))
	}
	if out == nil || out.Stats.Findings == 0 {
		return newResponse(http.StatusOK, NoResultsMessage)
	}
	return newResponse(http.StatusOK,
		fmt.Sprintf("Success! %d findings saved to %s", out.Stats.Findings, out.Location))
}

func errorMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindConfig:
		return "configuration error: " + err.Error()
	case apperr.KindSourceNotFound:
		path, _ := queries.Path(err)
		return fmt.Sprintf("configuration error: query file '%s' not found", path)
	default:
		return "internal error: " + err.Error()
	}
}
