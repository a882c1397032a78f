package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the authoritative per-wallet aggregate. Created on first contact
// (start, heartbeat or check-in), mutated by every accrual close and check-in,
// never hard-deleted.
type User struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	WalletAddress string `gorm:"uniqueIndex;not null" json:"walletAddress"`

	// Cumulative totals across all closed sessions and check-ins.
	Points float64 `gorm:"default:0" json:"points"`
	Uptime int64   `gorm:"default:0" json:"uptime"` // seconds

	// Live node state. NodeStartTime is only set while a session is active.
	NodeStatus    bool       `gorm:"default:false" json:"nodeStatus"`
	NodeStartTime *time.Time `json:"nodeStartTime,omitempty"`

	// Check-in streak state.
	CurrentStreak int        `gorm:"default:0" json:"currentStreak"`
	LongestStreak int        `gorm:"default:0" json:"longestStreak"`
	MaxStreak     int        `gorm:"default:0" json:"maxStreak"`
	TotalCheckIns int        `gorm:"default:0" json:"totalCheckIns"`
	LastCheckIn   *time.Time `json:"lastCheckIn,omitempty"`

	// Rolling earnings, reset whenever a credit lands in a new bucket.
	DailyEarnings   float64 `gorm:"default:0" json:"dailyEarnings"`
	WeeklyEarnings  float64 `gorm:"default:0" json:"weeklyEarnings"`
	MonthlyEarnings float64 `gorm:"default:0" json:"monthlyEarnings"`
	EarningsDay     string  `json:"-"` // e.g. 2025-08-31
	EarningsWeek    string  `json:"-"` // e.g. 2025-W35
	EarningsMonth   string  `json:"-"` // e.g. 2025-08

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
