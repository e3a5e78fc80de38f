package data

import (
	"time"

	"gorm.io/gorm"
)

// MatchResult is the persistent record of a concluded match. Writes are
// fire-and-forget from the game server's perspective; a failed insert is
// logged and does not affect the session teardown.
type MatchResult struct {
	ID        uint64 `gorm:"primaryKey"`
	MatchID   string `gorm:"unique; not null"`
	WinnerID  string `gorm:"index; not null"`
	LoserID   string `gorm:"index; not null"`
	StartedAt time.Time
	EndedAt   time.Time
}

// RecordMatchResult persists the outcome of a match and updates both
// participants' win/loss counters in one transaction.
func RecordMatchResult(db *gorm.DB, result *MatchResult) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		return RecordWinLoss(tx, result.WinnerID, result.LoserID)
	})
}

// FindMatchResultsByUserID returns the given player's match history, most
// recent first.
func FindMatchResultsByUserID(db *gorm.DB, userID string, limit int) ([]MatchResult, error) {
	var results []MatchResult
	err := db.Where("winner_id = ? OR loser_id = ?", userID, userID).
		Order("ended_at desc").
		Limit(limit).
		Find(&results).Error
	return results, err
}
