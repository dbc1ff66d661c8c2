package models

import "time"

// AuditLog is written by the orchestrator's post-commit hook with a
// structured change record for each finalized batch or maintenance action.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Actor     string    `gorm:"size:100" json:"actor"`
	Action    string    `gorm:"index;size:50;not null" json:"action"`
	Entity    string    `gorm:"index;size:50;not null" json:"entity"`
	EntityId  string    `gorm:"index;size:36" json:"entity_id"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
