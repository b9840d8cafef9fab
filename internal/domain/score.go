package domain

import "time"

// Score Model, one per completed game round
type Score struct {
	ID        uint      `gorm:"primaryKey"`     // Primary key
	UserID    uint      `gorm:"index;not null"` // Owner
	Game      string    `gorm:"size:64;not null;index:idx_scores_game_created"`
	Amount    int64     `gorm:"not null"` // Points after multiplier
	CreatedAt time.Time `gorm:"index:idx_scores_game_created"`
}
