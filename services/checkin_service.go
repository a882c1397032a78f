package services

import (
	"errors"
	"log"
	"math"
	"time"

	"github.com/MdShahriya/LNODE-sub000/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlreadyCheckedIn: one check-in per local calendar day; the second
// attempt is an expected boundary condition, not a failure.
var ErrAlreadyCheckedIn = errors.New("already checked in today")

// checkInRewards cycles every 7 days of streak.
var checkInRewards = [7]int{250, 500, 750, 1000, 1250, 1500, 1750}

// RewardForStreak indexes the 7-day cycle: day 1 → 250 ... day 7 → 1750,
// day 8 wraps back to 250.
func RewardForStreak(streak int) int {
	if streak < 1 {
		streak = 1
	}
	return checkInRewards[(streak-1)%7]
}

// TierForStreak labels a streak by absolute length. Streaks shorter than
// three days sit at the bronze floor.
func TierForStreak(streak int) models.RewardTier {
	switch {
	case streak >= 365:
		return models.RewardTierLegendary
	case streak >= 100:
		return models.RewardTierDiamond
	case streak >= 30:
		return models.RewardTierGold
	case streak >= 7:
		return models.RewardTierSilver
	default:
		return models.RewardTierBronze
	}
}

// localDate truncates to local midnight; streak math compares calendar
// days, never a rolling 24h window.
func localDate(t time.Time) time.Time {
	l := t.Local()
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// daysBetween counts calendar-day boundaries crossed between two dates.
func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// StreakResult is the outcome of the pure streak continuation/reset rule.
type StreakResult struct {
	Streak         int
	PreviousStreak int
	IsConsecutive  bool
	MissedDays     int
}

// NextStreak applies the date-boundary rule: same day fails, yesterday
// continues, anything older (or a first check-in) resets to 1.
func NextStreak(lastCheckIn *time.Time, previousStreak int, now time.Time) (StreakResult, error) {
	result := StreakResult{Streak: 1, PreviousStreak: previousStreak}
	if lastCheckIn == nil {
		return result, nil
	}

	gap := daysBetween(localDate(*lastCheckIn), localDate(now))
	switch {
	case gap <= 0:
		return StreakResult{}, ErrAlreadyCheckedIn
	case gap == 1:
		result.Streak = previousStreak + 1
		result.IsConsecutive = true
	default:
		result.MissedDays = gap - 1
	}
	return result, nil
}

type CheckinService struct {
	DB *gorm.DB
}

func NewCheckinService(db *gorm.DB) *CheckinService {
	return &CheckinService{DB: db}
}

// CheckinStatus backs GET /checkin.
type CheckinStatus struct {
	WalletAddress string     `json:"walletAddress"`
	CurrentStreak int        `json:"currentStreak"`
	LongestStreak int        `json:"longestStreak"`
	MaxStreak     int        `json:"maxStreak"`
	TotalCheckIns int        `json:"totalCheckIns"`
	LastCheckIn   *time.Time `json:"lastCheckIn,omitempty"`
	CanCheckIn    bool       `json:"canCheckIn"`
	NextReward    int        `json:"nextReward"`
}

// GetStatus returns the wallet's streak stats and today's eligibility.
func (s *CheckinService) GetStatus(walletAddress string) (*CheckinStatus, error) {
	if walletAddress == "" {
		return nil, ErrWalletNotConnected
	}

	var user models.User
	err := s.DB.Where("wallet_address = ?", walletAddress).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Unknown wallets simply haven't checked in yet.
		return &CheckinStatus{
			WalletAddress: walletAddress,
			CanCheckIn:    true,
			NextReward:    RewardForStreak(1),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	status := &CheckinStatus{
		WalletAddress: walletAddress,
		CurrentStreak: user.CurrentStreak,
		LongestStreak: user.LongestStreak,
		MaxStreak:     user.MaxStreak,
		TotalCheckIns: user.TotalCheckIns,
		LastCheckIn:   user.LastCheckIn,
	}

	result, err := NextStreak(user.LastCheckIn, user.CurrentStreak, time.Now())
	if errors.Is(err, ErrAlreadyCheckedIn) {
		status.NextReward = RewardForStreak(user.CurrentStreak + 1)
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	status.CanCheckIn = true
	status.NextReward = RewardForStreak(result.Streak)
	return status, nil
}

// CheckIn performs today's check-in: streak math, reward credit, ledger
// append and streak-state update in one transaction.
func (s *CheckinService) CheckIn(walletAddress string) (*models.CheckIn, *models.User, error) {
	if walletAddress == "" {
		return nil, nil, ErrWalletNotConnected
	}

	var checkIn *models.CheckIn
	var user *models.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = ensureUser(tx, walletAddress)
		if err != nil {
			return err
		}

		now := time.Now()
		result, err := NextStreak(user.LastCheckIn, user.CurrentStreak, now)
		if err != nil {
			return err
		}

		points := RewardForStreak(result.Streak)
		personalBest := result.Streak > user.MaxStreak

		checkIn = &models.CheckIn{
			ID:             uuid.NewString(),
			WalletAddress:  walletAddress,
			Date:           localDate(now),
			Streak:         result.Streak,
			PreviousStreak: result.PreviousStreak,
			Points:         points,
			RewardTier:     TierForStreak(result.Streak),
			IsConsecutive:  result.IsConsecutive,
			MissedDays:     result.MissedDays,
			PersonalBest:   personalBest,
		}
		if err := tx.Create(checkIn).Error; err != nil {
			// The unique (wallet, date) index backs up the date math.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyCheckedIn
			}
			return err
		}

		if _, err := creditPoints(tx, user, float64(points), "daily-checkin", string(checkIn.RewardTier), now); err != nil {
			return err
		}

		user.CurrentStreak = result.Streak
		if result.Streak > user.LongestStreak {
			user.LongestStreak = result.Streak
		}
		if result.Streak > user.MaxStreak {
			user.MaxStreak = result.Streak
		}
		user.TotalCheckIns++
		user.LastCheckIn = &now
		return tx.Save(user).Error
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("📅 Check-in for %s: day %d, +%d pts (%s, best=%t)",
		walletAddress, checkIn.Streak, checkIn.Points, checkIn.RewardTier, checkIn.PersonalBest)
	return checkIn, user, nil
}
