package models

import "time"

// Video is the composed render for exactly one audio. Append-only.
type Video struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	AudioID         string    `gorm:"type:varchar(64);index" json:"audioId"`
	FilePath        string    `gorm:"type:text" json:"filePath"`
	DurationSeconds float64   `json:"durationSeconds"`
	Resolution      string    `gorm:"type:varchar(20)" json:"resolution"`
	BackgroundVideo string    `gorm:"type:text" json:"backgroundVideo"`
	HasCaptions     bool      `gorm:"default:true" json:"hasCaptions"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (Video) TableName() string {
	return "videos"
}

func (s *Store) CreateVideo(v *Video) error {
	return s.db.Create(v).Error
}

func (s *Store) GetVideo(id string) (*Video, error) {
	var v Video
	if err := s.db.First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// VideosWithoutUpload finds renders that never got an upload row, typically
// because the pipeline unit died between the render and upload stages.
func (s *Store) VideosWithoutUpload(limit int) ([]Video, error) {
	var videos []Video
	err := s.db.
		Where("id NOT IN (?)", s.db.Model(&Upload{}).Select("video_id")).
		Order("created_at ASC").Limit(limit).Find(&videos).Error
	return videos, err
}
