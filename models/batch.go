package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BatchStatusPending    = "pending"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusPartial    = "partial"
	BatchStatusFailed     = "failed"
)

// Batch aggregates the upload outcome across all parts of one story.
// total_parts is fixed at creation; completed_parts only ever grows.
type Batch struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StoryID        string    `gorm:"type:varchar(64);index" json:"storyId"`
	Status         string    `gorm:"type:varchar(20)" json:"status"`
	TotalParts     int       `json:"totalParts"`
	CompletedParts int       `json:"completedParts"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Batch) TableName() string {
	return "batches"
}

// BatchStatusFor is the terminal status function: all parts uploaded means
// completed, some means partial, none means failed.
func BatchStatusFor(completed, total int) string {
	switch {
	case completed >= total:
		return BatchStatusCompleted
	case completed > 0:
		return BatchStatusPartial
	default:
		return BatchStatusFailed
	}
}

func (s *Store) CreateBatch(b *Batch) error {
	return s.db.Create(b).Error
}

func (s *Store) GetBatch(id string) (*Batch, error) {
	var b Batch
	if err := s.db.First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) LatestBatchForStory(storyID string) (*Batch, error) {
	var b Batch
	err := s.db.Where("story_id = ?", storyID).
		Order("created_at DESC").First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// IncrementBatchCompleted bumps completed_parts by one. The counter is
// monotonic; nothing ever decrements it.
func (s *Store) IncrementBatchCompleted(id string) error {
	return s.db.Model(&Batch{}).Where("id = ?", id).
		UpdateColumn("completed_parts", gorm.Expr("completed_parts + 1")).Error
}

func (s *Store) UpdateBatchStatus(id, status string) error {
	return s.db.Model(&Batch{}).Where("id = ?", id).
		Update("status", status).Error
}
