package service

import (
	"encoding/json"
	"fmt"
	"time"

	"TikTokAuto-server/config"
	"TikTokAuto-server/logger"

	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypePipelineRun    = "pipeline:run"
	TypeUploadDispatch = "upload:dispatch"
	TypeAcquireStories = "acquire:fetch"

	TypeSweepPendingUploads = "sweep:pending_uploads"
	TypeSweepFailedUploads  = "sweep:failed_uploads"
	TypeSweepDeadLetters    = "sweep:dead_letters"
	TypeSweepRetention      = "sweep:retention"
)

// Queue lanes. Per-stage lanes collapse into the pipeline lane because
// sub-stages run in-process inside one unit; capacity tuning happens via
// lane weights and worker concurrency.
const (
	QueuePipeline    = "pipeline"
	QueueUpload      = "upload"
	QueueAcquisition = "acquisition"
	QueueMaintenance = "maintenance"
)

// LaneWeights gives the heavy pipeline lane priority while keeping the
// upload and background lanes drained.
var LaneWeights = map[string]int{
	QueuePipeline:    5,
	QueueUpload:      3,
	QueueAcquisition: 1,
	QueueMaintenance: 1,
}

type PipelinePayload struct {
	StoryID string `json:"story_id"`
}

type UploadPayload struct {
	UploadID string `json:"upload_id"`
}

var QueueClient *asynq.Client

func InitQueue() {
	QueueClient = asynq.NewClient(RedisOpt())
}

func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
		DB:       config.AppConfig.Redis.DB,
	}
}

// EnqueuePipelineRun schedules a full pipeline run for an approved story.
// Queue-level retries are off: the run owns its retries stage by stage, and
// terminal business failures must land in the archive exactly once.
func EnqueuePipelineRun(storyID string) error {
	payload, err := json.Marshal(PipelinePayload{StoryID: storyID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}
	task := asynq.NewTask(TypePipelineRun, payload,
		asynq.Queue(QueuePipeline),
		asynq.MaxRetry(0),
		asynq.Timeout(time.Duration(config.AppConfig.Pipeline.StageTimeoutMins)*4*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	logger.S().Infof("[queue] pipeline run enqueued: story=%s task=%s", storyID, info.ID)
	return nil
}

// EnqueueUploadDispatch schedules a standalone upload attempt for a pending
// publication (sweep requeue or operator retry).
func EnqueueUploadDispatch(uploadID string) error {
	payload, err := json.Marshal(UploadPayload{UploadID: uploadID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}
	task := asynq.NewTask(TypeUploadDispatch, payload,
		asynq.Queue(QueueUpload),
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	logger.S().Infof("[queue] upload dispatch enqueued: upload=%s task=%s", uploadID, info.ID)
	return nil
}
