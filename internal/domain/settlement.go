package domain

import "time"

// Settlement statuses
const (
	SettlementRunning = "running"
	SettlementPaid    = "paid"
)

// SettlementRun marks a (game, period) pair as settled
type SettlementRun struct {
	ID         uint   `gorm:"primaryKey"`
	Game       string `gorm:"size:64;not null;uniqueIndex:idx_settlement_game_period"`
	Period     string `gorm:"size:7;not null;uniqueIndex:idx_settlement_game_period"` // YYYY-MM
	Status     string `gorm:"size:16;not null"`
	PaidCount  int    // Rewards credited
	SkipCount  int    // Rows that failed and were skipped
	CreatedAt  time.Time
	FinishedAt *time.Time
}
