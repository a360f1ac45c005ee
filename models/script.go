package models

import (
	"fmt"
	"time"
)

// Script is one narration part of a story. Multi-part stories carry a hook
// and cliffhanger continuity, so part order matters everywhere scripts are
// consumed. Rows are append-only.
type Script struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StoryID     string    `gorm:"type:varchar(64);index" json:"storyId"`
	PartNumber  int       `json:"partNumber"`
	TotalParts  int       `json:"totalParts"`
	Hook        string    `gorm:"type:text" json:"hook"`
	Content     string    `gorm:"type:longtext" json:"content"`
	CTA         string    `gorm:"type:text" json:"cta"`
	CharCount   int       `json:"charCount"`
	VoiceGender string    `gorm:"type:varchar(10)" json:"voiceGender"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Script) TableName() string {
	return "scripts"
}

// ValidatePartNumbers checks that part numbers cover 1..total_parts exactly
// once and that every part agrees on total_parts.
func ValidatePartNumbers(scripts []Script) error {
	if len(scripts) == 0 {
		return fmt.Errorf("no scripts")
	}
	total := scripts[0].TotalParts
	if total != len(scripts) {
		return fmt.Errorf("total_parts %d does not match script count %d", total, len(scripts))
	}
	seen := make(map[int]bool, len(scripts))
	for _, sc := range scripts {
		if sc.TotalParts != total {
			return fmt.Errorf("part %d disagrees on total_parts (%d vs %d)", sc.PartNumber, sc.TotalParts, total)
		}
		if sc.PartNumber < 1 || sc.PartNumber > total {
			return fmt.Errorf("part number %d out of range 1..%d", sc.PartNumber, total)
		}
		if seen[sc.PartNumber] {
			return fmt.Errorf("duplicate part number %d", sc.PartNumber)
		}
		seen[sc.PartNumber] = true
	}
	return nil
}

func (s *Store) CreateScripts(scripts []Script) error {
	if err := ValidatePartNumbers(scripts); err != nil {
		return err
	}
	return s.db.Create(&scripts).Error
}

func (s *Store) ScriptsByStoryID(storyID string) ([]Script, error) {
	var scripts []Script
	err := s.db.Where("story_id = ?", storyID).
		Order("part_number ASC").Find(&scripts).Error
	return scripts, err
}
