package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Account is the persistent record for a registered player. The game server
// never creates credentials; identities arrive through verified session
// tokens and are materialized here on first sight.
type Account struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    string `gorm:"unique; not null"`
	CreatedAt time.Time
	LastLogin time.Time
	Wins      int `gorm:"default:0"`
	Losses    int `gorm:"default:0"`
	Banned    bool `gorm:"default:false"`
}

// FindAccountByUserID searches for an account with the specified identity,
// returning the *Account instance if found or nil if there is no match.
func FindAccountByUserID(db *gorm.DB, userID string) (*Account, error) {
	var account Account
	err := db.Where("user_id = ?", userID).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// FindOrCreateAccount returns the account for userID, creating it on first
// login. The LastLogin timestamp is refreshed either way.
func FindOrCreateAccount(db *gorm.DB, userID string) (*Account, error) {
	account, err := FindAccountByUserID(db, userID)
	if err != nil {
		return nil, err
	}

	if account == nil {
		account = &Account{UserID: userID, LastLogin: time.Now()}
		if err := db.Create(account).Error; err != nil {
			return nil, err
		}
		return account, nil
	}

	account.LastLogin = time.Now()
	if err := db.Save(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// RecordWinLoss bumps the win/loss counters for both participants.
func RecordWinLoss(db *gorm.DB, winnerID, loserID string) error {
	if err := db.Model(&Account{}).Where("user_id = ?", winnerID).
		UpdateColumn("wins", gorm.Expr("wins + 1")).Error; err != nil {
		return err
	}
	return db.Model(&Account{}).Where("user_id = ?", loserID).
		UpdateColumn("losses", gorm.Expr("losses + 1")).Error
}
