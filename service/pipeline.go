package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TikTokAuto-server/logger"
	"TikTokAuto-server/models"

	"github.com/google/uuid"
)

// Rate-limited external resources.
const (
	ResourceReddit = "reddit"
	ResourceLLM    = "llm"
	ResourceUpload = "tiktok_upload"
)

// Pipeline drives one approved story through scripting, narration, rendering
// and upload. The whole run executes inside a single queue unit: sub-stages
// are called in-process, never dispatched-and-awaited, so a busy worker pool
// can never deadlock on its own sub-tasks.
type Pipeline struct {
	store      EntityStore
	scripting  Scripting
	narration  Narration
	rendering  Rendering
	publishing Publishing
	notifier   Notifier
	limiter    Governor

	retry         RetryPolicy
	uploadMaxWait time.Duration
	now           func() time.Time
}

func NewPipeline(
	store EntityStore,
	scripting Scripting,
	narration Narration,
	rendering Rendering,
	publishing Publishing,
	notifier Notifier,
	limiter Governor,
	retry RetryPolicy,
	uploadMaxWait time.Duration,
) *Pipeline {
	return &Pipeline{
		store:         store,
		scripting:     scripting,
		narration:     narration,
		rendering:     rendering,
		publishing:    publishing,
		notifier:      notifier,
		limiter:       limiter,
		retry:         retry,
		uploadMaxWait: uploadMaxWait,
		now:           time.Now,
	}
}

// Run executes the full pipeline for one approved story.
func (p *Pipeline) Run(ctx context.Context, storyID string) error {
	story, err := p.store.GetStory(storyID)
	if err != nil {
		return Permanent("pipeline", fmt.Errorf("story not found: %w", err))
	}
	if story.Status != models.StoryStatusApproved {
		return Permanent("pipeline", fmt.Errorf("story %s is %s, not approved", storyID, story.Status))
	}

	run := &models.PipelineRun{
		ID:          uuid.NewString(),
		StoryID:     storyID,
		Status:      models.RunStatusProcessing,
		CurrentStep: "scripting",
		StartedAt:   p.now().UTC(),
	}
	if err := p.store.CreatePipelineRun(run); err != nil {
		logger.S().Warnf("create pipeline run failed: %v", err)
	}

	scripts, err := p.runScriptStage(ctx, story)
	if err != nil {
		p.failStory(storyID, run.ID, "scripting", err)
		return err
	}

	_ = p.store.UpdatePipelineRunStep(run.ID, "generate")
	videos, err := p.runGenerateStage(ctx, storyID, scripts)
	if err != nil {
		p.failStory(storyID, run.ID, stageOf(err), err)
		return err
	}

	_ = p.store.UpdatePipelineRunStep(run.ID, "upload")
	return p.runUploadStage(ctx, storyID, run.ID, videos)
}

// runScriptStage invokes the scripting collaborator and persists the ordered
// parts.
func (p *Pipeline) runScriptStage(ctx context.Context, story *models.Story) ([]models.Script, error) {
	if err := p.store.UpdateStoryStatus(story.ID, models.StoryStatusScripting, ""); err != nil {
		return nil, Transient("scripting", err)
	}

	var scripts []models.Script
	err := p.retry.Do(ctx, "scripting", func(ctx context.Context) error {
		if !p.limiter.WaitForSlot(ctx, ResourceLLM, p.uploadMaxWait) {
			return Transient("scripting", errors.New("no llm rate slot available"))
		}
		out, err := p.scripting.Generate(ctx, story)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return Permanent("scripting", errors.New("collaborator returned no scripts"))
		}
		scripts = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range scripts {
		if scripts[i].ID == "" {
			scripts[i].ID = uuid.NewString()
		}
		scripts[i].StoryID = story.ID
		if scripts[i].CharCount == 0 {
			scripts[i].CharCount = len(scripts[i].Content)
		}
	}
	if err := p.store.CreateScripts(scripts); err != nil {
		return nil, Permanent("scripting", err)
	}
	note := fmt.Sprintf("Scripts created: %d part(s)", len(scripts))
	_ = p.store.UpdateStoryStatus(story.ID, models.StoryStatusScripting, note)
	logger.S().Infof("[scripting] story %s split into %d part(s)", story.ID, len(scripts))
	return scripts, nil
}

// runGenerateStage walks the parts strictly in part order, synthesizing
// narration and rendering video one pair at a time. Sequential on purpose:
// synthesis and rendering are the heavy stages, and one in-flight pair per
// story is the concurrency cap.
func (p *Pipeline) runGenerateStage(ctx context.Context, storyID string, scripts []models.Script) ([]models.Video, error) {
	total := len(scripts)
	videos := make([]models.Video, 0, total)

	for i := range scripts {
		script := &scripts[i]
		note := fmt.Sprintf("Generating audio %d/%d", i+1, total)
		_ = p.store.UpdateStoryStatus(storyID, models.StoryStatusGenAudio, note)

		var audio *models.Audio
		err := p.retry.Do(ctx, "narration", func(ctx context.Context) error {
			a, err := p.narration.Synthesize(ctx, script)
			if err != nil {
				return err
			}
			audio = a
			return nil
		})
		if err != nil {
			return nil, err
		}
		if audio.ID == "" {
			audio.ID = uuid.NewString()
		}
		audio.ScriptID = script.ID
		if err := p.store.CreateAudio(audio); err != nil {
			return nil, Transient("narration", err)
		}

		note = fmt.Sprintf("Rendering video %d/%d", i+1, total)
		_ = p.store.UpdateStoryStatus(storyID, models.StoryStatusRenderingVideo, note)

		var video *models.Video
		err = p.retry.Do(ctx, "rendering", func(ctx context.Context) error {
			v, err := p.rendering.Render(ctx, audio)
			if err != nil {
				return err
			}
			video = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		if video.ID == "" {
			video.ID = uuid.NewString()
		}
		video.AudioID = audio.ID
		if err := p.store.CreateVideo(video); err != nil {
			return nil, Transient("rendering", err)
		}
		videos = append(videos, *video)
	}
	return videos, nil
}

// runUploadStage creates the batch and uploads every video sequentially in
// part order, then settles the batch and story terminal statuses. A story
// fails only when zero parts uploaded; a partial batch still completes the
// story. Deliberate contract, not an oversight.
func (p *Pipeline) runUploadStage(ctx context.Context, storyID, runID string, videos []models.Video) error {
	_ = p.store.UpdateStoryStatus(storyID, models.StoryStatusUploading, "")

	batch := &models.Batch{
		ID:             uuid.NewString(),
		StoryID:        storyID,
		Status:         models.BatchStatusProcessing,
		TotalParts:     len(videos),
		CompletedParts: 0,
		CreatedAt:      p.now().UTC(),
	}
	if err := p.store.CreateBatch(batch); err != nil {
		err = Transient("upload", err)
		p.failStory(storyID, runID, "upload", err)
		return err
	}

	total := len(videos)
	completed := 0
	for i := range videos {
		note := fmt.Sprintf("Uploading video %d/%d", i+1, total)
		_ = p.store.UpdateStoryStatus(storyID, models.StoryStatusUploading, note)

		upload := &models.Upload{
			ID:        uuid.NewString(),
			VideoID:   videos[i].ID,
			BatchID:   batch.ID,
			Platform:  models.PlatformTikTok,
			Status:    models.UploadStatusPending,
			CreatedAt: p.now().UTC(),
		}
		if err := p.store.CreateUpload(upload); err != nil {
			logger.S().Errorf("[upload] create upload row failed for video %s: %v", videos[i].ID, err)
			continue
		}
		if p.attemptUpload(ctx, upload, &videos[i]) {
			completed++
			_ = p.store.IncrementBatchCompleted(batch.ID)
		}
	}

	status := models.BatchStatusFor(completed, total)
	_ = p.store.UpdateBatchStatus(batch.ID, status)

	finished := p.now().UTC()
	if completed == 0 {
		reason := "upload: no parts uploaded"
		_ = p.store.UpdateStoryStatus(storyID, models.StoryStatusFailed, reason)
		_ = p.store.FinishPipelineRun(runID, models.RunStatusFailed, batch.ID, reason, finished)
		p.notifier.Alert(storyID, "batch_failed", reason)
		return nil
	}
	note := fmt.Sprintf("Uploaded %d/%d part(s)", completed, total)
	_ = p.store.UpdateStoryStatus(storyID, models.StoryStatusCompleted, note)
	_ = p.store.FinishPipelineRun(runID, models.RunStatusCompleted, batch.ID, "", finished)
	logger.S().Infof("[upload] story %s batch %s: %s (%d/%d)", storyID, batch.ID, status, completed, total)
	return nil
}

// attemptUpload drives one upload row to a settled state. Each failed
// attempt increments retry_count; at the ceiling the row stays failed and an
// alert goes out. Quota starvation leaves the row pending for the discovery
// sweep instead of burning retries.
func (p *Pipeline) attemptUpload(ctx context.Context, upload *models.Upload, video *models.Video) bool {
	for {
		if !p.limiter.WaitForSlot(ctx, ResourceUpload, p.uploadMaxWait) {
			_ = p.store.UpdateUploadStatus(upload.ID, models.UploadStatusPending, "daily upload quota exhausted")
			logger.S().Infof("[upload] no quota slot for video %s, leaving pending", video.ID)
			return false
		}
		_ = p.store.UpdateUploadStatus(upload.ID, models.UploadStatusUploading, "")

		var reason string
		res, err := p.publishing.Upload(ctx, video, upload.BatchID)
		if err != nil {
			reason = err.Error()
		} else {
			switch res.Status {
			case models.UploadStatusSuccess:
				_ = p.store.MarkUploadSuccess(upload.ID, res.PlatformVideoID, res.PlatformURL, p.now().UTC())
				logger.S().Infof("[upload] video %s uploaded: %s", video.ID, res.PlatformURL)
				return true
			case models.UploadStatusManualRequired:
				_ = p.store.UpdateUploadStatus(upload.ID, models.UploadStatusManualRequired, res.Reason)
				p.notifier.Alert(video.ID, "manual_required", res.Reason)
				return false
			default:
				reason = res.Reason
				if reason == "" {
					reason = "upload failed"
				}
			}
		}

		count, rerr := p.store.IncrementUploadRetry(upload.ID)
		if rerr != nil {
			logger.S().Errorf("[upload] increment retry failed for %s: %v", upload.ID, rerr)
			count = p.retry.MaxAttempts
		}
		_ = p.store.UpdateUploadStatus(upload.ID, models.UploadStatusFailed, reason)

		if count >= p.retry.MaxAttempts {
			logger.S().Errorf("[upload] video %s failed after %d attempts: %s", video.ID, count, reason)
			p.notifier.Alert(video.ID, "max_retries_exceeded", reason)
			return false
		}
		delay := p.retry.Backoff(count - 1)
		logger.S().Infof("[upload] video %s attempt %d failed, retrying in %s: %s", video.ID, count, delay, reason)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// DispatchUpload retries one requeued upload outside a pipeline run (sweep
// or operator initiated) and refreshes batch and story state on success.
func (p *Pipeline) DispatchUpload(ctx context.Context, uploadID string) error {
	upload, err := p.store.GetUpload(uploadID)
	if err != nil {
		return Permanent("upload", fmt.Errorf("upload not found: %w", err))
	}
	if upload.Status != models.UploadStatusPending {
		// Not ours to touch: a pipeline unit or an earlier dispatch owns it.
		logger.S().Debugf("[upload] dispatch skipped, upload %s is %s", uploadID, upload.Status)
		return nil
	}
	video, err := p.store.GetVideo(upload.VideoID)
	if err != nil {
		return Permanent("upload", fmt.Errorf("video not found: %w", err))
	}

	if !p.attemptUpload(ctx, upload, video) {
		return nil
	}
	if upload.BatchID == "" {
		return nil
	}
	if err := p.store.IncrementBatchCompleted(upload.BatchID); err != nil {
		return err
	}
	batch, err := p.store.GetBatch(upload.BatchID)
	if err != nil {
		return err
	}
	_ = p.store.UpdateBatchStatus(batch.ID, models.BatchStatusFor(batch.CompletedParts, batch.TotalParts))
	// Any uploaded part completes the story.
	note := fmt.Sprintf("Uploaded %d/%d part(s)", batch.CompletedParts, batch.TotalParts)
	return p.store.UpdateStoryStatus(batch.StoryID, models.StoryStatusCompleted, note)
}

func stageOf(err error) string {
	var ee *ExhaustedError
	if errors.As(err, &ee) {
		return ee.Stage
	}
	var te *TransientError
	if errors.As(err, &te) {
		return te.Stage
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return "pipeline"
}

// failStory settles terminal failure state and fires the alert. The reason
// string is stage-tagged and capped by the store.
func (p *Pipeline) failStory(storyID, runID, stage string, cause error) {
	// Error types already carry the stage tag in their message.
	reason := cause.Error()
	if err := p.store.UpdateStoryStatus(storyID, models.StoryStatusFailed, reason); err != nil {
		logger.S().Errorf("mark story %s failed: %v", storyID, err)
	}
	_ = p.store.FinishPipelineRun(runID, models.RunStatusFailed, "", reason, p.now().UTC())
	p.notifier.Alert(storyID, stage+"_failed", cause.Error())
}
