package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// INSERT IGNORE keeps acquisition idempotent across overlapping sweeps.
var insertIgnore = clause.Insert{Modifier: "IGNORE"}

// Story statuses. pending/approved/rejected belong to the approval flow; the
// rest are written by the pipeline as it moves through its stages.
const (
	StoryStatusPending        = "pending"
	StoryStatusApproved       = "approved"
	StoryStatusRejected       = "rejected"
	StoryStatusScripting      = "scripting"
	StoryStatusGenAudio       = "generating_audio"
	StoryStatusRenderingVideo = "rendering_video"
	StoryStatusUploading      = "uploading"
	StoryStatusCompleted      = "completed"
	StoryStatusFailed         = "failed"
)

type Story struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SourceID  string         `gorm:"type:varchar(32);uniqueIndex" json:"sourceId"`
	Subreddit string         `gorm:"type:varchar(100);index" json:"subreddit"`
	Title     string         `gorm:"type:text" json:"title"`
	Content   string         `gorm:"type:longtext" json:"content"`
	Author    string         `gorm:"type:varchar(100)" json:"author"`
	Score     int            `json:"score"`
	URL       string         `gorm:"type:text" json:"url"`
	CharCount int            `json:"charCount"`
	Status    string         `gorm:"type:varchar(20);index" json:"status"`
	Note      string         `gorm:"type:varchar(255)" json:"note"`
	Meta      datatypes.JSON `json:"meta"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (Story) TableName() string {
	return "stories"
}

func (s *Store) CreateStory(story *Story) error {
	return s.db.Create(story).Error
}

// CreateStories inserts fetched stories, silently skipping ones whose
// source_id already exists. Returns the number actually inserted.
func (s *Store) CreateStories(stories []Story) (int, error) {
	inserted := 0
	for i := range stories {
		res := s.db.Clauses(insertIgnore).Create(&stories[i])
		if res.Error != nil {
			return inserted, res.Error
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

func (s *Store) GetStory(id string) (*Story, error) {
	var story Story
	if err := s.db.First(&story, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &story, nil
}

func (s *Store) StoriesByStatus(status string, limit int) ([]Story, error) {
	var stories []Story
	err := s.db.Where("status = ?", status).
		Order("created_at DESC").Limit(limit).Find(&stories).Error
	return stories, err
}

// UpdateStoryStatus writes status and, when note is non-empty, the
// human-readable progress note. Notes are capped so a collaborator error
// string can never blow the column.
func (s *Store) UpdateStoryStatus(id, status, note string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if note != "" {
		updates["note"] = Truncate(note, 255)
	}
	return s.db.Model(&Story{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteStoryCascade removes a story and every descendant row: scripts,
// audio, videos, uploads, batches and pipeline runs.
func (s *Store) DeleteStoryCascade(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		scriptIDs := tx.Model(&Script{}).Select("id").Where("story_id = ?", id)
		audioIDs := tx.Model(&Audio{}).Select("id").Where("script_id IN (?)", scriptIDs)
		videoIDs := tx.Model(&Video{}).Select("id").Where("audio_id IN (?)", audioIDs)

		if err := tx.Where("video_id IN (?)", videoIDs).Delete(&Upload{}).Error; err != nil {
			return err
		}
		if err := tx.Where("audio_id IN (?)", audioIDs).Delete(&Video{}).Error; err != nil {
			return err
		}
		if err := tx.Where("script_id IN (?)", scriptIDs).Delete(&Audio{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&Script{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&Batch{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&PipelineRun{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Story{}, "id = ?", id).Error
	})
}

// CountByStatus returns story counts keyed by status for the dashboard.
func (s *Store) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := s.db.Model(&Story{}).Select("status, count(*) as n").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// Truncate caps s at max runes-as-bytes for storage in bounded columns.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
