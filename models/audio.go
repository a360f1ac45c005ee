package models

import "time"

// Audio is the synthesized narration for exactly one script. Append-only.
type Audio struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ScriptID        string    `gorm:"type:varchar(64);index" json:"scriptId"`
	FilePath        string    `gorm:"type:text" json:"filePath"`
	DurationSeconds float64   `json:"durationSeconds"`
	VoiceModel      string    `gorm:"type:varchar(100)" json:"voiceModel"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (Audio) TableName() string {
	return "audio"
}

func (s *Store) CreateAudio(a *Audio) error {
	return s.db.Create(a).Error
}

func (s *Store) GetAudio(id string) (*Audio, error) {
	var a Audio
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
