package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/MdShahriya/LNODE-sub000/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ensureUser fetches or creates the wallet's aggregate row (idempotent).
func ensureUser(tx *gorm.DB, walletAddress string) (*models.User, error) {
	var user models.User
	err := tx.Where("wallet_address = ?", walletAddress).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ID:            uuid.NewString(),
			WalletAddress: walletAddress,
		}
		if err := tx.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// creditPoints applies a credit to the user aggregate and appends the
// matching ledger entry. Must run inside the caller's transaction so the
// aggregate and the ledger cannot desynchronize.
func creditPoints(tx *gorm.DB, user *models.User, points float64, source, subSource string, now time.Time) (*models.PointsLedgerEntry, error) {
	if points < 0 {
		return nil, fmt.Errorf("creditPoints called with negative delta %f", points)
	}

	before := user.Points
	user.Points += points
	rollEarnings(user, points, now)

	entry := &models.PointsLedgerEntry{
		ID:              uuid.NewString(),
		WalletAddress:   user.WalletAddress,
		Points:          points,
		BalanceBefore:   before,
		BalanceAfter:    user.Points,
		Source:          slug.Make(source),
		SubSource:       slug.Make(subSource),
		TransactionType: models.TransactionTypeCredit,
		Timestamp:       now,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return entry, nil
}

// rollEarnings bumps the daily/weekly/monthly counters, resetting any
// counter whose bucket has rolled over since the last credit.
func rollEarnings(user *models.User, points float64, now time.Time) {
	local := now.Local()
	day := local.Format("2006-01-02")
	year, week := local.ISOWeek()
	weekKey := fmt.Sprintf("%d-W%02d", year, week)
	month := local.Format("2006-01")

	if user.EarningsDay != day {
		user.EarningsDay = day
		user.DailyEarnings = 0
	}
	if user.EarningsWeek != weekKey {
		user.EarningsWeek = weekKey
		user.WeeklyEarnings = 0
	}
	if user.EarningsMonth != month {
		user.EarningsMonth = month
		user.MonthlyEarnings = 0
	}

	user.DailyEarnings += points
	user.WeeklyEarnings += points
	user.MonthlyEarnings += points
}
