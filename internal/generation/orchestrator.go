package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"runreel/internal/config"
	"runreel/internal/logging"
	"runreel/internal/notifications"
	"runreel/internal/records"
	"runreel/internal/services"
	"runreel/internal/services/tavus"
)

// Provider is the subset of the rendering provider client the orchestrator
// drives.
type Provider interface {
	Submit(ctx context.Context, req tavus.SubmitRequest) (tavus.SubmitResponse, error)
	Status(ctx context.Context, videoID string) (tavus.VideoStatus, error)
}

// RecordStore is the durable job record surface the orchestrator persists
// phase boundaries to. records.Store satisfies it.
type RecordStore interface {
	CreatePending(ctx context.Context, ownerID, subjectID, script string) (*records.Record, error)
	MarkProcessing(ctx context.Context, id, providerJobID string) error
	MarkCompleted(ctx context.Context, id, mediaURL string) error
	MarkFailed(ctx context.Context, id, message string) error
	FindLatestActive(ctx context.Context, ownerID string) (*records.Record, error)
}

// ResultArchiver mirrors a completed render into durable storage.
type ResultArchiver interface {
	Archive(ctx context.Context, recordID, mediaURL string) (string, error)
}

// Result is the terminal outcome Generate returns to the caller.
type Result struct {
	VideoURL     string
	ThumbnailURL string
	JobID        string
}

// Orchestrator ties submission, polling, and persistence together behind a
// single Generate entry point. One generation may be in flight per instance;
// the session is a projection of the record store, never the authority.
type Orchestrator struct {
	owner         string
	identityRef   string
	fastRender    bool
	configured    bool
	peakThreshold time.Duration

	provider Provider
	store    RecordStore
	poller   *Poller
	notifier notifications.Service
	archiver ResultArchiver
	logger   *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu      sync.Mutex
	sess    session
	running bool
	cancel  context.CancelFunc
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithNotifier attaches a notification service for terminal transitions.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *Orchestrator) {
		if notifier != nil {
			o.notifier = notifier
		}
	}
}

// WithArchiver attaches a best-effort archiver for completed renders.
func WithArchiver(archiver ResultArchiver) Option {
	return func(o *Orchestrator) {
		o.archiver = archiver
	}
}

// WithClock overrides the wall clock (used in tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSleep overrides the poll delay function (used in tests).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New constructs an orchestrator for the configured owner and provider.
func New(cfg *config.Config, store RecordStore, provider Provider, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		store:         store,
		notifier:      notifications.NewService(cfg),
		logger:        logging.NewComponentLogger(logger, "orchestrator"),
		now:           time.Now,
		sleep:         sleepContext,
		peakThreshold: DefaultPeakThreshold,
	}
	policy := DefaultPollPolicy()
	if cfg != nil {
		o.owner = cfg.Owner.ID
		o.identityRef = cfg.Tavus.IdentityRef
		o.fastRender = cfg.Tavus.FastRender
		o.configured = cfg.TavusConfigured()
		policy = PolicyFromConfig(cfg)
		if cfg.Generation.PeakThresholdSeconds > 0 {
			o.peakThreshold = time.Duration(cfg.Generation.PeakThresholdSeconds) * time.Second
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	o.poller = NewPoller(provider, policy, logger)
	o.poller.now = o.now
	o.poller.sleep = o.sleep
	o.sess.reset()
	return o
}

// Snapshot returns a copy of the current session state for rendering.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.snapshot(o.now())
}

// Generate submits one achievement video job and drives it to a terminal
// outcome. Preconditions fail fast with zero network calls and zero record
// writes. A second call while one is in flight fails immediately; a call on
// a terminal session implicitly resets it first.
func (o *Orchestrator) Generate(ctx context.Context, input Input) (Result, error) {
	input = input.normalized()

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Result{}, services.Wrap(services.ErrConcurrent, "orchestrator", "generate", "a generation is already in flight", nil)
	}
	if !o.configured {
		o.mu.Unlock()
		return Result{}, services.Wrap(services.ErrConfiguration, "orchestrator", "generate", "provider api key or identity ref missing", nil)
	}
	if o.owner == "" {
		o.mu.Unlock()
		return Result{}, services.Wrap(services.ErrAuth, "orchestrator", "generate", "no authenticated owner", nil)
	}
	if err := input.Validate(); err != nil {
		o.mu.Unlock()
		return Result{}, services.Wrap(services.ErrValidation, "orchestrator", "generate", err.Error(), nil)
	}

	o.sess.reset()
	o.sess.advance(StateInitializing)
	o.sess.startedAt = o.now()
	o.running = true
	genCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
	}()

	stopTicker := o.startProgressTicker(genCtx)
	defer stopTicker()

	return o.run(genCtx, input)
}

func (o *Orchestrator) run(ctx context.Context, input Input) (Result, error) {
	o.setState(StateSubmitting)

	record, err := o.store.CreatePending(ctx, o.owner, input.SubjectID, input.ScriptText)
	if err != nil {
		return o.fail(ctx, input.SubjectID, services.Wrap(services.ErrSubmission, "records", "create", "persist job record", err))
	}
	o.mu.Lock()
	o.sess.recordID = record.ID
	o.mu.Unlock()
	ctx = services.WithRecordID(ctx, record.ID)
	logger := logging.WithContext(ctx, o.logger)

	name := fmt.Sprintf("runreel-%s-%s", input.SubjectID, uuid.NewString()[:8])
	resp, err := o.provider.Submit(ctx, tavus.SubmitRequest{
		IdentityRef: o.identityRef,
		Script:      input.ScriptText,
		Name:        name,
		Fast:        o.fastRender,
	})
	if err != nil {
		return o.fail(ctx, input.SubjectID, classifySubmitError(err))
	}
	logger.Info(
		"render job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String(logging.FieldJobID, resp.VideoID),
		logging.String("initial_status", resp.Status),
	)

	if err := o.store.MarkProcessing(ctx, record.ID, resp.VideoID); err != nil {
		return o.fail(ctx, input.SubjectID, services.Wrap(services.ErrSubmission, "records", "mark processing", "persist provider job id", err))
	}
	o.mu.Lock()
	o.sess.providerJobID = resp.VideoID
	if classifyStatus(resp.Status) == statusProcessing {
		o.sess.advance(StateProcessing)
	} else {
		o.sess.advance(StateQueued)
	}
	startedAt := o.sess.startedAt
	o.mu.Unlock()

	return o.finishPolling(ctx, record.ID, resp.VideoID, input.SubjectID, startedAt)
}

// finishPolling drives an already-submitted job to its terminal outcome and
// persists it. Shared by Generate and Resume.
func (o *Orchestrator) finishPolling(ctx context.Context, recordID, videoID, subjectID string, startedAt time.Time) (Result, error) {
	logger := logging.WithContext(ctx, o.logger)

	terminal, err := o.poller.PollUntilTerminal(ctx, videoID, startedAt, o.observe)
	if err != nil {
		return o.fail(ctx, subjectID, classifyPollError(err))
	}

	o.setState(StateFinalizing)
	if err := o.store.MarkCompleted(ctx, recordID, terminal.MediaURL); err != nil {
		return o.fail(ctx, subjectID, services.Wrap(nil, "records", "mark completed", "persist final status", err))
	}

	if o.archiver != nil {
		if archived, err := o.archiver.Archive(ctx, recordID, terminal.MediaURL); err != nil {
			logger.Warn("archive of completed render failed", logging.Error(err))
		} else if archived != "" {
			logger.Info("render archived", logging.String("archive_location", archived))
		}
	}
	if err := o.notifier.NotifyGenerationCompleted(ctx, subjectID, terminal.MediaURL); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}

	o.mu.Lock()
	o.sess.advance(StateCompleted)
	o.sess.finishedAt = o.now()
	o.sess.resultMediaURL = terminal.MediaURL
	o.sess.resultThumbnailURL = terminal.ThumbnailURL
	o.sess.progressPercent = 100
	o.sess.progressMessage = "Your video is ready"
	o.sess.estimatedRemaining = 0
	o.sess.queueDuration = terminal.QueueDuration
	o.mu.Unlock()

	logger.Info(
		"generation completed",
		logging.String(logging.FieldEventType, "generation_completed"),
		logging.String(logging.FieldJobID, videoID),
		logging.Int("attempts", terminal.Attempts),
		logging.Duration("queue_duration", terminal.QueueDuration),
	)
	return Result{VideoURL: terminal.MediaURL, ThumbnailURL: terminal.ThumbnailURL, JobID: recordID}, nil
}

// fail finalizes the durable record, the session, and the caller-visible
// error for every fatal path. The record fallback tolerates partial state: a
// failure after record creation but before the provider id was captured
// still reaches the most recent active record for this owner.
func (o *Orchestrator) fail(ctx context.Context, subjectID string, classified error) (Result, error) {
	kind := services.Kind(classified)
	message := strings.TrimSpace(classified.Error())
	logger := logging.WithContext(ctx, o.logger)

	o.mu.Lock()
	recordID := o.sess.recordID
	o.mu.Unlock()

	// Record writes must survive caller cancellation or the record would be
	// stuck non-terminal forever.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelPersist()

	if recordID == "" {
		if latest, err := o.store.FindLatestActive(persistCtx, o.owner); err != nil {
			logger.Warn("find active record for failure update", logging.Error(err))
		} else if latest != nil {
			recordID = latest.ID
		}
	}
	if recordID != "" {
		if err := o.store.MarkFailed(persistCtx, recordID, message); err != nil && !errors.Is(err, records.ErrInvalidTransition) {
			logger.Error("persist failure status", logging.Error(err))
		}
	}

	if err := o.notifier.NotifyGenerationFailed(persistCtx, subjectID, message); err != nil {
		logger.Debug("failure notification failed", logging.Error(err))
	}

	o.mu.Lock()
	o.sess.advance(StateFailed)
	o.sess.finishedAt = o.now()
	o.sess.errorMessage = message
	o.sess.errorKind = kind
	o.sess.progressPercent = 0
	o.sess.progressMessage = services.Guidance(classified)
	o.sess.estimatedRemaining = 0
	o.mu.Unlock()

	logger.Error(
		"generation failed",
		logging.String(logging.FieldEventType, "generation_failed"),
		logging.String("error_kind", kind),
		logging.Error(classified),
	)
	return Result{}, classified
}

// Cancel stops an in-flight generation. The poll loop observes cancellation
// before its next iteration; an in-flight HTTP call completes but its result
// is discarded.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset returns a terminal session to Idle. It is the only backward
// transition the session permits.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return services.Wrap(services.ErrConcurrent, "orchestrator", "reset", "a generation is in flight", nil)
	}
	if o.sess.state != StateIdle && !o.sess.state.IsTerminal() {
		return fmt.Errorf("reset only valid from a terminal state, session is %s", o.sess.state)
	}
	o.sess.reset()
	return nil
}

// Resume picks up the most recent non-terminal record for the owner, if any,
// and drives its provider job to a terminal outcome. Called at daemon
// startup so a restart mid-poll never orphans a record. Returns false when
// there was nothing to resume.
func (o *Orchestrator) Resume(ctx context.Context) (bool, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return false, nil
	}
	if !o.configured || o.owner == "" {
		o.mu.Unlock()
		return false, nil
	}
	o.mu.Unlock()

	record, err := o.store.FindLatestActive(ctx, o.owner)
	if err != nil {
		return false, fmt.Errorf("find resumable record: %w", err)
	}
	if record == nil {
		return false, nil
	}
	if record.ProviderJobID == "" {
		// Interrupted before submission finished; there is no provider job
		// to poll, so finalize the record instead of orphaning it.
		if err := o.store.MarkFailed(ctx, record.ID, "Interrupted before the render job was created"); err != nil {
			return false, fmt.Errorf("finalize unsubmitted record: %w", err)
		}
		return false, nil
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return false, nil
	}
	o.sess.reset()
	o.sess.advance(StateProcessing)
	o.sess.recordID = record.ID
	o.sess.providerJobID = record.ProviderJobID
	// The timeout ceiling is measured from the original submission, so a
	// resumed job does not get a fresh ten minutes.
	o.sess.startedAt = record.CreatedAt
	o.running = true
	genCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
	}()

	stopTicker := o.startProgressTicker(genCtx)
	defer stopTicker()

	resumeCtx := services.WithRecordID(genCtx, record.ID)
	logging.WithContext(resumeCtx, o.logger).Info(
		"resuming orphaned generation",
		logging.String(logging.FieldEventType, "generation_resumed"),
		logging.String(logging.FieldJobID, record.ProviderJobID),
	)
	_, err = o.finishPolling(resumeCtx, record.ID, record.ProviderJobID, record.SubjectID, record.CreatedAt)
	return true, err
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sess.advance(state)
}

// observe is called by the poller after each non-terminal poll.
func (o *Orchestrator) observe(obs Observation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if obs.QueuePhaseEnded {
		o.sess.queueDuration = obs.QueueDuration
	}
	if obs.Phase == PhaseProcessing {
		o.sess.advance(StateProcessing)
	}
	o.updateProgressLocked(obs.Elapsed)
}

func (o *Orchestrator) updateProgressLocked(elapsed time.Duration) {
	if !o.sess.state.IsActive() {
		return
	}
	// Peak load detection is sticky: once a session trips the threshold it
	// stays flagged until reset.
	if elapsed >= o.peakThreshold {
		o.sess.peakLoad = true
	}
	phase := PhaseProcessing
	if o.sess.state == StateQueued {
		phase = PhaseQueued
	}
	progress := Estimate(elapsed, phase, o.sess.peakLoad)
	if progress.Percentage > o.sess.progressPercent {
		o.sess.progressPercent = progress.Percentage
	}
	o.sess.progressMessage = progress.Message
	o.sess.estimatedRemaining = remainingEstimate(elapsed, o.sess.progressPercent)
}

// startProgressTicker refreshes progress once per second while the session
// is active so the UI sees movement between polls. Torn down on every
// terminal transition via the returned stop function.
func (o *Orchestrator) startProgressTicker(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				o.mu.Lock()
				o.updateProgressLocked(o.sess.elapsed(o.now()))
				o.mu.Unlock()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func classifySubmitError(err error) error {
	var statusErr *tavus.StatusError
	if errors.As(err, &statusErr) {
		return services.Wrap(
			services.ErrSubmission,
			"tavus",
			"submit",
			fmt.Sprintf("provider rejected request with http %d", statusErr.StatusCode),
			err,
		)
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, "tavus", "submit", "cancelled during submission", err)
	}
	return services.Wrap(services.ErrSubmission, "tavus", "submit", "submission failed", err)
}

func classifyPollError(err error) error {
	var timeoutErr *PollTimeoutError
	var providerErr *ProviderFailureError
	switch {
	case errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCancelled, "poller", "status", "generation cancelled", err)
	case errors.As(err, &timeoutErr):
		return services.Wrap(services.ErrPollTimeout, "poller", "status", "gave up waiting for the render", err)
	case errors.Is(err, ErrNoMediaURL):
		return services.Wrap(services.ErrMissingResult, "poller", "status", "completed without a media url", err)
	case errors.As(err, &providerErr):
		return services.Wrap(services.ErrProviderFailed, "poller", "status", "render failed at the provider", err)
	default:
		return services.Wrap(services.ErrPoll, "poller", "status", "status checks kept failing", err)
	}
}
