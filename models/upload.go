package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	UploadStatusPending        = "pending"
	UploadStatusUploading      = "uploading"
	UploadStatusSuccess        = "success"
	UploadStatusFailed         = "failed"
	UploadStatusManualRequired = "manual_required"

	PlatformTikTok = "tiktok"
)

// Upload tracks one publication attempt chain for a video. Together with
// Batch it is the only entity mutated after creation.
type Upload struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	VideoID         string     `gorm:"type:varchar(64);index" json:"videoId"`
	BatchID         string     `gorm:"type:varchar(64);index" json:"batchId"`
	Platform        string     `gorm:"type:varchar(20)" json:"platform"`
	Status          string     `gorm:"type:varchar(20);index" json:"status"`
	PlatformVideoID string     `gorm:"type:text" json:"platformVideoId"`
	PlatformURL     string     `gorm:"type:text" json:"platformUrl"`
	ErrorMessage    string     `gorm:"type:varchar(512)" json:"errorMessage"`
	RetryCount      int        `json:"retryCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UploadedAt      *time.Time `json:"uploadedAt"`
}

func (Upload) TableName() string {
	return "uploads"
}

func (s *Store) CreateUpload(u *Upload) error {
	return s.db.Create(u).Error
}

func (s *Store) GetUpload(id string) (*Upload, error) {
	var u Upload
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UploadsByBatchID(batchID string) ([]Upload, error) {
	var uploads []Upload
	err := s.db.Where("batch_id = ?", batchID).
		Order("created_at ASC").Find(&uploads).Error
	return uploads, err
}

func (s *Store) UpdateUploadStatus(id, status, errMsg string) error {
	updates := map[string]interface{}{"status": status}
	if errMsg != "" {
		updates["error_message"] = Truncate(errMsg, 512)
	}
	return s.db.Model(&Upload{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) MarkUploadSuccess(id, platformVideoID, platformURL string, at time.Time) error {
	return s.db.Model(&Upload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":            UploadStatusSuccess,
		"platform_video_id": platformVideoID,
		"platform_url":      platformURL,
		"error_message":     "",
		"uploaded_at":       at,
	}).Error
}

// IncrementUploadRetry bumps retry_count atomically and returns the new value.
func (s *Store) IncrementUploadRetry(id string) (int, error) {
	err := s.db.Model(&Upload{}).Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
	if err != nil {
		return 0, err
	}
	u, err := s.GetUpload(id)
	if err != nil {
		return 0, err
	}
	return u.RetryCount, nil
}

// ResetUploadToPending requeues a failed upload for another attempt. The
// attempt itself increments retry_count, not the reset.
func (s *Store) ResetUploadToPending(id string) error {
	return s.db.Model(&Upload{}).Where("id = ?", id).
		Update("status", UploadStatusPending).Error
}

// PendingUploads are rows whose status is strictly pending. The discovery
// sweep only touches these, which keeps it safe to run next to a live
// pipeline unit.
func (s *Store) PendingUploads(limit int) ([]Upload, error) {
	var uploads []Upload
	err := s.db.Where("status = ?", UploadStatusPending).
		Order("created_at ASC").Limit(limit).Find(&uploads).Error
	return uploads, err
}

// FailedUploadsForRetry selects failed uploads still under the retry
// ceiling. Rows at the ceiling are excluded permanently.
func (s *Store) FailedUploadsForRetry(maxRetries, limit int) ([]Upload, error) {
	var uploads []Upload
	err := s.db.Where("status = ? AND retry_count < ?", UploadStatusFailed, maxRetries).
		Order("created_at ASC").Limit(limit).Find(&uploads).Error
	return uploads, err
}

// ExpiredSuccessfulUploads selects successful uploads older than cutoff for
// media retention cleanup. Rows themselves are never deleted.
func (s *Store) ExpiredSuccessfulUploads(cutoff time.Time, limit int) ([]Upload, error) {
	var uploads []Upload
	err := s.db.Where("status = ? AND uploaded_at < ?", UploadStatusSuccess, cutoff).
		Order("uploaded_at ASC").Limit(limit).Find(&uploads).Error
	return uploads, err
}

// MediaPathsForUpload resolves the video and audio file references behind an
// upload so retention cleanup can delete the objects.
func (s *Store) MediaPathsForUpload(u *Upload) (videoPath, audioPath string, err error) {
	v, err := s.GetVideo(u.VideoID)
	if err != nil {
		return "", "", err
	}
	a, err := s.GetAudio(v.AudioID)
	if err != nil {
		return v.FilePath, "", err
	}
	return v.FilePath, a.FilePath, nil
}
