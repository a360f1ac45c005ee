package service

import (
	"context"
	"time"

	"TikTokAuto-server/models"
)

// Stage collaborators. Implementations live behind network boundaries; the
// coordinator only sees these contracts.

// Scripting turns an approved story into ordered narration scripts.
type Scripting interface {
	Generate(ctx context.Context, story *models.Story) ([]models.Script, error)
}

// Narration synthesizes audio for one script.
type Narration interface {
	Synthesize(ctx context.Context, script *models.Script) (*models.Audio, error)
}

// Rendering composes the video for one narration.
type Rendering interface {
	Render(ctx context.Context, audio *models.Audio) (*models.Video, error)
}

// UploadResult carries a publish outcome. Ordinary failure is reported here,
// never as an error; errors are reserved for transport trouble.
type UploadResult struct {
	Status          string `json:"status"` // success | manual_required | failed
	PlatformVideoID string `json:"platform_video_id"`
	PlatformURL     string `json:"platform_url"`
	Reason          string `json:"reason"`
}

// Publishing uploads one rendered video to the platform.
type Publishing interface {
	Upload(ctx context.Context, video *models.Video, batchID string) (UploadResult, error)
}

// Notifier delivers failure alerts. Best-effort and fire-and-forget: it must
// never block or fail the pipeline.
type Notifier interface {
	Alert(subjectID, failureType, reason string)
}

// Acquirer fetches candidate stories from the content source.
type Acquirer interface {
	Fetch(ctx context.Context) ([]models.Story, error)
}

// Governor is the admission-control surface the pipeline needs.
type Governor interface {
	Check(ctx context.Context, resource string) error
	WaitForSlot(ctx context.Context, resource string, maxWait time.Duration) bool
}
