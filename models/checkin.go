package models

import (
	"time"
)

// RewardTier labels a streak by its absolute length (3/7/30/100/365 days).
// Independent of the 7-day reward cycle.
type RewardTier string

const (
	RewardTierBronze    RewardTier = "bronze"
	RewardTierSilver    RewardTier = "silver"
	RewardTierGold      RewardTier = "gold"
	RewardTierDiamond   RewardTier = "diamond"
	RewardTierLegendary RewardTier = "legendary"
)

// CheckIn is one row per wallet per calendar day. Date is truncated to local
// midnight; the composite unique index makes a same-day repeat a conflict.
type CheckIn struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	WalletAddress  string     `gorm:"index:idx_checkins_wallet_date,unique;not null" json:"walletAddress"`
	Date           time.Time  `gorm:"index:idx_checkins_wallet_date,unique;not null" json:"date"`
	Streak         int        `json:"streak"`
	PreviousStreak int        `json:"previousStreak"`
	Points         int        `json:"points"`
	RewardTier     RewardTier `json:"rewardTier"`
	IsConsecutive  bool       `json:"isConsecutive"`
	MissedDays     int        `json:"missedDays"`
	PersonalBest   bool       `json:"personalBest"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}
