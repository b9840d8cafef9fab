package domain

import "time"

// TaskRun is one execution of a scheduled task
type TaskRun struct {
	ID         uint      `gorm:"primaryKey"`
	Task       string    `gorm:"size:64;not null;index"`
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt time.Time
	Status     string `gorm:"size:16;not null"` // ok or failed
	Detail     string `gorm:"type:text"`
}
