package models

import "time"

const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// PipelineRun is the audit record of one pipeline execution: which step it
// reached, when, and with what error if it died.
type PipelineRun struct {
	ID           string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StoryID      string     `gorm:"type:varchar(64);index" json:"storyId"`
	BatchID      string     `gorm:"type:varchar(64)" json:"batchId"`
	Status       string     `gorm:"type:varchar(20);index" json:"status"`
	CurrentStep  string     `gorm:"type:varchar(50)" json:"currentStep"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
	ErrorMessage string     `gorm:"type:varchar(512)" json:"errorMessage"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

func (s *Store) CreatePipelineRun(r *PipelineRun) error {
	return s.db.Create(r).Error
}

func (s *Store) UpdatePipelineRunStep(id, step string) error {
	return s.db.Model(&PipelineRun{}).Where("id = ?", id).
		Update("current_step", step).Error
}

func (s *Store) FinishPipelineRun(id, status, batchID, errMsg string, at time.Time) error {
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": at,
	}
	if batchID != "" {
		updates["batch_id"] = batchID
	}
	if errMsg != "" {
		updates["error_message"] = Truncate(errMsg, 512)
	}
	return s.db.Model(&PipelineRun{}).Where("id = ?", id).Updates(updates).Error
}
