package service

import (
	"time"

	"TikTokAuto-server/models"
)

// EntityStore is the persistence surface the coordinator and maintenance
// loops depend on. *models.Store is the production implementation; tests
// swap in an in-memory fake.
type EntityStore interface {
	GetStory(id string) (*models.Story, error)
	UpdateStoryStatus(id, status, note string) error
	CreateStories(stories []models.Story) (int, error)

	CreateScripts(scripts []models.Script) error
	ScriptsByStoryID(storyID string) ([]models.Script, error)

	CreateAudio(a *models.Audio) error
	GetAudio(id string) (*models.Audio, error)
	CreateVideo(v *models.Video) error
	GetVideo(id string) (*models.Video, error)
	VideosWithoutUpload(limit int) ([]models.Video, error)

	CreateUpload(u *models.Upload) error
	GetUpload(id string) (*models.Upload, error)
	UpdateUploadStatus(id, status, errMsg string) error
	MarkUploadSuccess(id, platformVideoID, platformURL string, at time.Time) error
	IncrementUploadRetry(id string) (int, error)
	ResetUploadToPending(id string) error
	PendingUploads(limit int) ([]models.Upload, error)
	FailedUploadsForRetry(maxRetries, limit int) ([]models.Upload, error)
	ExpiredSuccessfulUploads(cutoff time.Time, limit int) ([]models.Upload, error)
	MediaPathsForUpload(u *models.Upload) (videoPath, audioPath string, err error)

	CreateBatch(b *models.Batch) error
	GetBatch(id string) (*models.Batch, error)
	IncrementBatchCompleted(id string) error
	UpdateBatchStatus(id, status string) error

	CreatePipelineRun(r *models.PipelineRun) error
	UpdatePipelineRunStep(id, step string) error
	FinishPipelineRun(id, status, batchID, errMsg string, at time.Time) error
}

var _ EntityStore = (*models.Store)(nil)
