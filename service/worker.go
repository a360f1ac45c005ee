package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"TikTokAuto-server/logger"
	"TikTokAuto-server/models"
)

// WorkerClient talks to the external generation worker. Generation jobs are
// asynchronous: POST /v1/generate hands back a job id which is polled on
// /v1/jobs/{id} until it settles. Publishing is synchronous on /v1/publish
// and reports ordinary failure inside the response payload.
type WorkerClient struct {
	endpoint     string
	http         *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewWorkerClient(endpoint string) *WorkerClient {
	return &WorkerClient{
		endpoint:     endpoint,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: 3 * time.Second,
		pollTimeout:  30 * time.Minute,
	}
}

var _ Scripting = (*WorkerClient)(nil)
var _ Narration = (*WorkerClient)(nil)
var _ Rendering = (*WorkerClient)(nil)
var _ Publishing = (*WorkerClient)(nil)

type jobResult struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (w *WorkerClient) Generate(ctx context.Context, story *models.Story) ([]models.Script, error) {
	raw, err := w.runJob(ctx, "scripts", map[string]interface{}{
		"story_id": story.ID,
		"title":    story.Title,
		"content":  story.Content,
	})
	if err != nil {
		return nil, tagStage("scripting", err)
	}
	var out struct {
		Scripts []struct {
			PartNumber  int    `json:"part_number"`
			TotalParts  int    `json:"total_parts"`
			Hook        string `json:"hook"`
			Content     string `json:"content"`
			CTA         string `json:"cta"`
			VoiceGender string `json:"voice_gender"`
		} `json:"scripts"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, Permanent("scripting", fmt.Errorf("parse scripts result: %w", err))
	}
	scripts := make([]models.Script, 0, len(out.Scripts))
	for i, sc := range out.Scripts {
		part := sc.PartNumber
		if part == 0 {
			part = i + 1
		}
		total := sc.TotalParts
		if total == 0 {
			total = len(out.Scripts)
		}
		scripts = append(scripts, models.Script{
			PartNumber:  part,
			TotalParts:  total,
			Hook:        sc.Hook,
			Content:     sc.Content,
			CTA:         sc.CTA,
			CharCount:   len(sc.Content),
			VoiceGender: sc.VoiceGender,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return scripts, nil
}

func (w *WorkerClient) Synthesize(ctx context.Context, script *models.Script) (*models.Audio, error) {
	raw, err := w.runJob(ctx, "narration", map[string]interface{}{
		"script_id":    script.ID,
		"hook":         script.Hook,
		"content":      script.Content,
		"cta":          script.CTA,
		"voice_gender": script.VoiceGender,
	})
	if err != nil {
		return nil, tagStage("narration", err)
	}
	var out struct {
		FilePath        string  `json:"file_path"`
		DurationSeconds float64 `json:"duration_seconds"`
		VoiceModel      string  `json:"voice_model"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, Permanent("narration", fmt.Errorf("parse narration result: %w", err))
	}
	if out.FilePath == "" {
		return nil, Permanent("narration", fmt.Errorf("narration result missing file_path"))
	}
	return &models.Audio{
		FilePath:        out.FilePath,
		DurationSeconds: out.DurationSeconds,
		VoiceModel:      out.VoiceModel,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func (w *WorkerClient) Render(ctx context.Context, audio *models.Audio) (*models.Video, error) {
	raw, err := w.runJob(ctx, "render", map[string]interface{}{
		"audio_id":         audio.ID,
		"audio_path":       audio.FilePath,
		"duration_seconds": audio.DurationSeconds,
	})
	if err != nil {
		return nil, tagStage("rendering", err)
	}
	var out struct {
		FilePath        string  `json:"file_path"`
		DurationSeconds float64 `json:"duration_seconds"`
		Resolution      string  `json:"resolution"`
		BackgroundVideo string  `json:"background_video"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, Permanent("rendering", fmt.Errorf("parse render result: %w", err))
	}
	if out.FilePath == "" {
		return nil, Permanent("rendering", fmt.Errorf("render result missing file_path"))
	}
	return &models.Video{
		FilePath:        out.FilePath,
		DurationSeconds: out.DurationSeconds,
		Resolution:      out.Resolution,
		BackgroundVideo: out.BackgroundVideo,
		HasCaptions:     true,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Upload publishes one video. Transport trouble comes back as an error;
// platform-side rejection rides inside the result payload.
func (w *WorkerClient) Upload(ctx context.Context, video *models.Video, batchID string) (UploadResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"video_id":  video.ID,
		"file_path": video.FilePath,
		"batch_id":  batchID,
		"platform":  models.PlatformTikTok,
	})
	if err != nil {
		return UploadResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint+"/v1/publish", bytes.NewReader(body))
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, fmt.Errorf("publish status code: %d", resp.StatusCode)
	}
	var res UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return UploadResult{}, fmt.Errorf("decode publish response: %w", err)
	}
	if res.Status == "" {
		res.Status = models.UploadStatusFailed
		res.Reason = "publish response missing status"
	}
	return res, nil
}

// runJob dispatches one generation job and polls it to completion.
func (w *WorkerClient) runJob(ctx context.Context, kind string, params map[string]interface{}) (json.RawMessage, error) {
	jobID, err := w.dispatch(ctx, kind, params)
	if err != nil {
		return nil, err
	}
	logger.S().Infof("[worker] %s job submitted: %s", kind, jobID)
	return w.poll(ctx, jobID)
}

func (w *WorkerClient) dispatch(ctx context.Context, kind string, params map[string]interface{}) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"type":       kind,
		"parameters": params,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", &PermanentError{Stage: kind, Err: fmt.Errorf("worker rejected job: %d", resp.StatusCode)}
	default:
		return "", fmt.Errorf("worker status code: %d", resp.StatusCode)
	}

	var out jobResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode dispatch response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("dispatch response missing id")
	}
	return out.ID, nil
}

func (w *WorkerClient) poll(ctx context.Context, jobID string) (json.RawMessage, error) {
	jobURL := fmt.Sprintf("%s/v1/jobs/%s", w.endpoint, jobID)
	timeout := time.After(w.pollTimeout)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("polling timeout for job %s", jobID)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
			if err != nil {
				return nil, err
			}
			resp, err := w.http.Do(req)
			if err != nil {
				logger.S().Warnf("[worker] poll error, retrying: %v", err)
				continue
			}
			var res jobResult
			err = json.NewDecoder(resp.Body).Decode(&res)
			resp.Body.Close()
			if err != nil {
				logger.S().Warnf("[worker] parse poll response, retrying: %v", err)
				continue
			}
			switch res.Status {
			case "finished", "success", "succeeded", "completed":
				return res.Result, nil
			case "failed", "error":
				return nil, fmt.Errorf("worker reported failure: %s", res.Error)
			}
			// still running, keep polling
		}
	}
}

// tagStage wraps untyped errors as Transient for the stage. Typed errors
// pass through untouched.
func tagStage(stage string, err error) error {
	if IsPermanent(err) || IsTransient(err) {
		return err
	}
	return Transient(stage, err)
}
