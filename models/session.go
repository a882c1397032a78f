package models

import (
	"time"
)

// SessionStatus indicates whether a session is still accruing
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// NodeQuality is the health tier of a session, determining the accrual multiplier
type NodeQuality string

const (
	NodeQualityBronze   NodeQuality = "bronze"
	NodeQualitySilver   NodeQuality = "silver"
	NodeQualityGold     NodeQuality = "gold"
	NodeQualityPlatinum NodeQuality = "platinum"
	NodeQualityDiamond  NodeQuality = "diamond"
)

// Session is one contiguous run interval between start and stop/auto-stop.
// Invariant: at most one active session per wallet, enforced by a partial
// unique index (see models.Migrate) on top of the optimistic check in the
// service layer.
type Session struct {
	ID            string        `gorm:"primaryKey;type:uuid" json:"id"`
	SessionID     string        `gorm:"uniqueIndex;not null" json:"sessionId"` // client-visible token
	WalletAddress string        `gorm:"index;not null" json:"walletAddress"`
	StartTime     time.Time     `gorm:"not null" json:"startTime"`
	EndTime       *time.Time    `json:"endTime,omitempty"`
	Status        SessionStatus `gorm:"not null;default:'active'" json:"status"`
	LastHeartbeat time.Time     `json:"lastHeartbeat"`

	// Uptime and PointsEarned are recomputed from the server clock; any
	// client-reported elapsed value is ignored.
	Uptime       int64   `gorm:"default:0" json:"uptime"` // seconds
	PointsEarned float64 `gorm:"default:0" json:"pointsEarned"`
	AutoStopped  bool    `gorm:"default:false" json:"autoStopped"`

	// Latest reported performance metrics (overwritten per heartbeat).
	CPUUsage       float64 `json:"cpuUsage"`       // percent
	MemoryUsage    float64 `json:"memoryUsage"`    // MB
	NetworkLatency float64 `json:"networkLatency"` // ms

	// Counters are merged additively across heartbeats, never overwritten.
	ErrorCount   int `gorm:"default:0" json:"errorCount"`
	WarningCount int `gorm:"default:0" json:"warningCount"`

	NodeQuality      NodeQuality `gorm:"default:'bronze'" json:"nodeQuality"`
	PerformanceScore float64     `gorm:"default:100" json:"performanceScore"`

	// Latest network/geo context from heartbeats, informational only.
	NetworkType string `json:"networkType,omitempty"`
	Country     string `json:"country,omitempty"`
	City        string `json:"city,omitempty"`

	Timestamps
}
