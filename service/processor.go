package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"TikTokAuto-server/logger"
	"TikTokAuto-server/ratelimit"

	"github.com/hibiken/asynq"
)

// Processor consumes queue units: pipeline runs, standalone upload
// dispatches, acquisition fetches and maintenance sweeps.
type Processor struct {
	pipeline    *Pipeline
	maintenance *Maintenance
	acquisition *Acquisition
}

func NewProcessor(pipeline *Pipeline, maintenance *Maintenance, acquisition *Acquisition) *Processor {
	return &Processor{
		pipeline:    pipeline,
		maintenance: maintenance,
		acquisition: acquisition,
	}
}

func (p *Processor) Start(concurrency int) {
	srv := asynq.NewServer(
		RedisOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues:      LaneWeights,
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePipelineRun, p.HandlePipelineRun)
	mux.HandleFunc(TypeUploadDispatch, p.HandleUploadDispatch)
	mux.HandleFunc(TypeAcquireStories, p.HandleAcquireStories)
	mux.HandleFunc(TypeSweepPendingUploads, p.maintenance.HandlePendingUploadSweep)
	mux.HandleFunc(TypeSweepFailedUploads, p.maintenance.HandleFailedUploadSweep)
	mux.HandleFunc(TypeSweepDeadLetters, p.maintenance.HandleDeadLetterSweep)
	mux.HandleFunc(TypeSweepRetention, p.maintenance.HandleRetentionSweep)

	logger.S().Infof("starting processor with concurrency %d", concurrency)
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.S().Fatalf("could not run queue server: %v", err)
		}
	}()
}

func (p *Processor) HandlePipelineRun(ctx context.Context, t *asynq.Task) error {
	var payload PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logger.S().Infof("[pipeline] running story %s", payload.StoryID)

	err := p.pipeline.Run(ctx, payload.StoryID)
	if err == nil {
		return nil
	}
	// Terminal state is already persisted; the error only decides archiving.
	// Permanent failures (bad precondition) never retry; everything else
	// lands in the archive for the dead-letter drain.
	if IsPermanent(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (p *Processor) HandleUploadDispatch(ctx context.Context, t *asynq.Task) error {
	var payload UploadPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	err := p.pipeline.DispatchUpload(ctx, payload.UploadID)
	if err != nil && IsPermanent(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Acquisition fetches candidate stories and stores them pending approval.
type Acquisition struct {
	store    EntityStore
	acquirer Acquirer
	limiter  Governor
}

func NewAcquisition(store EntityStore, acquirer Acquirer, limiter Governor) *Acquisition {
	return &Acquisition{store: store, acquirer: acquirer, limiter: limiter}
}

func (a *Acquisition) Fetch(ctx context.Context) (int, error) {
	if err := a.limiter.Check(ctx, ResourceReddit); err != nil {
		return 0, err
	}
	stories, err := a.acquirer.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if len(stories) == 0 {
		return 0, nil
	}
	inserted, err := a.store.CreateStories(stories)
	if err != nil {
		return inserted, err
	}
	logger.S().Infof("[acquire] fetched %d stories, %d new", len(stories), inserted)
	return inserted, nil
}

func (p *Processor) HandleAcquireStories(ctx context.Context, t *asynq.Task) error {
	_, err := p.acquisition.Fetch(ctx)
	var limitErr *ratelimit.ErrLimitExceeded
	if errors.As(err, &limitErr) {
		// Quota pressure is not a failure; the next scheduled fetch retries.
		logger.S().Infof("[acquire] rate limited, retry after %s", limitErr.RetryAfter)
		return nil
	}
	return err
}
