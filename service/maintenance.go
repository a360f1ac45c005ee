package service

import (
	"context"
	"time"

	"TikTokAuto-server/logger"
	"TikTokAuto-server/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func newID() string { return uuid.NewString() }

// ArchiveInspector is the slice of asynq.Inspector the dead-letter drain
// needs. Archived tasks are the dead letters: retries spent, awaiting
// post-mortem.
type ArchiveInspector interface {
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// ObjectRemover deletes one stored media object; missing objects are not an
// error.
type ObjectRemover interface {
	Remove(ctx context.Context, objectPath string) error
}

// Enqueuer re-dispatches uploads discovered by the sweeps.
type Enqueuer func(uploadID string) error

// Maintenance owns the periodic repair loops. Every sweep is idempotent and
// safe to run next to live pipeline units.
type Maintenance struct {
	store     EntityStore
	inspector ArchiveInspector
	storage   ObjectRemover
	notifier  Notifier
	enqueue   Enqueuer

	maxRetries    int
	retentionDays int
	batchSize     int
	now           func() time.Time
}

func NewMaintenance(
	store EntityStore,
	inspector ArchiveInspector,
	storage ObjectRemover,
	notifier Notifier,
	enqueue Enqueuer,
	maxRetries, retentionDays, batchSize int,
) *Maintenance {
	return &Maintenance{
		store:         store,
		inspector:     inspector,
		storage:       storage,
		notifier:      notifier,
		enqueue:       enqueue,
		maxRetries:    maxRetries,
		retentionDays: retentionDays,
		batchSize:     batchSize,
		now:           time.Now,
	}
}

// PendingUploadSweep finds videos with no upload row and uploads stuck
// pending, and (re)enqueues upload attempts. It only creates rows for
// videos lacking one and only touches uploads whose status is strictly
// pending, so it cannot double-upload next to a live pipeline.
func (m *Maintenance) PendingUploadSweep(ctx context.Context) (int, error) {
	dispatched := 0

	orphans, err := m.store.VideosWithoutUpload(m.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range orphans {
		upload := &models.Upload{
			ID:        newID(),
			VideoID:   orphans[i].ID,
			Platform:  models.PlatformTikTok,
			Status:    models.UploadStatusPending,
			CreatedAt: m.now().UTC(),
		}
		if err := m.store.CreateUpload(upload); err != nil {
			logger.S().Errorf("[sweep] create upload for orphan video %s: %v", orphans[i].ID, err)
			continue
		}
		if err := m.enqueue(upload.ID); err != nil {
			logger.S().Errorf("[sweep] enqueue upload %s: %v", upload.ID, err)
			continue
		}
		dispatched++
	}

	pending, err := m.store.PendingUploads(m.batchSize)
	if err != nil {
		return dispatched, err
	}
	for i := range pending {
		if err := m.enqueue(pending[i].ID); err != nil {
			logger.S().Errorf("[sweep] enqueue pending upload %s: %v", pending[i].ID, err)
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		logger.S().Infof("[sweep] pending-upload discovery dispatched %d upload(s)", dispatched)
	}
	return dispatched, nil
}

// FailedUploadSweep resets failed uploads still under the retry ceiling back
// to pending and re-dispatches them. The reset increments nothing; the
// attempt itself bumps retry_count. Uploads at the ceiling stay untouched.
func (m *Maintenance) FailedUploadSweep(ctx context.Context) (int, error) {
	uploads, err := m.store.FailedUploadsForRetry(m.maxRetries, m.batchSize)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for i := range uploads {
		if err := m.store.ResetUploadToPending(uploads[i].ID); err != nil {
			logger.S().Errorf("[sweep] reset upload %s: %v", uploads[i].ID, err)
			continue
		}
		if err := m.enqueue(uploads[i].ID); err != nil {
			logger.S().Errorf("[sweep] enqueue upload %s: %v", uploads[i].ID, err)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		logger.S().Infof("[sweep] failed-upload retry requeued %d upload(s)", requeued)
	}
	return requeued, nil
}

// DeadLetterSweep drains archived tasks: exactly one alert per entry, then
// the entry is deleted so a second sweep never re-notifies. Idempotence via
// deletion, not a notified flag.
func (m *Maintenance) DeadLetterSweep(ctx context.Context) (int, error) {
	drained := 0
	for queue := range LaneWeights {
		tasks, err := m.inspector.ListArchivedTasks(queue, asynq.PageSize(m.batchSize))
		if err != nil {
			logger.S().Errorf("[sweep] list archived tasks for %s: %v", queue, err)
			continue
		}
		for _, t := range tasks {
			m.notifier.Alert(t.ID, "dead_letter", t.Type+": "+t.LastErr)
			if err := m.inspector.DeleteTask(queue, t.ID); err != nil {
				logger.S().Errorf("[sweep] delete archived task %s: %v", t.ID, err)
				continue
			}
			drained++
		}
	}
	if drained > 0 {
		logger.S().Infof("[sweep] dead-letter drain handled %d task(s)", drained)
	}
	return drained, nil
}

// RetentionSweep deletes media objects behind successful uploads older than
// the retention window. Rows stay for the audit trail; a single failed
// delete never aborts the rest.
func (m *Maintenance) RetentionSweep(ctx context.Context) (int, error) {
	cutoff := m.now().UTC().AddDate(0, 0, -m.retentionDays)
	uploads, err := m.store.ExpiredSuccessfulUploads(cutoff, m.batchSize)
	if err != nil {
		return 0, err
	}
	cleaned := 0
	for i := range uploads {
		videoPath, audioPath, err := m.store.MediaPathsForUpload(&uploads[i])
		if err != nil {
			logger.S().Warnf("[sweep] resolve media for upload %s: %v", uploads[i].ID, err)
		}
		for _, path := range []string{videoPath, audioPath} {
			if path == "" {
				continue
			}
			if err := m.storage.Remove(ctx, path); err != nil {
				logger.S().Warnf("[sweep] remove %s: %v", path, err)
			}
		}
		cleaned++
	}
	if cleaned > 0 {
		logger.S().Infof("[sweep] retention cleanup processed %d upload(s) older than %s", cleaned, cutoff.Format(time.RFC3339))
	}
	return cleaned, nil
}

func (m *Maintenance) HandlePendingUploadSweep(ctx context.Context, t *asynq.Task) error {
	_, err := m.PendingUploadSweep(ctx)
	return err
}

func (m *Maintenance) HandleFailedUploadSweep(ctx context.Context, t *asynq.Task) error {
	_, err := m.FailedUploadSweep(ctx)
	return err
}

func (m *Maintenance) HandleDeadLetterSweep(ctx context.Context, t *asynq.Task) error {
	_, err := m.DeadLetterSweep(ctx)
	return err
}

func (m *Maintenance) HandleRetentionSweep(ctx context.Context, t *asynq.Task) error {
	_, err := m.RetentionSweep(ctx)
	return err
}
