package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MdShahriya/LNODE-sub000/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrWalletNotConnected: the caller has no bound wallet; user-correctable.
	ErrWalletNotConnected = errors.New("wallet not connected")
	// ErrAlreadyRunning: an active session already exists for this wallet.
	ErrAlreadyRunning = errors.New("node is already running for this wallet")
	// ErrActiveSessionNotFound: no active session matches the wallet/sessionId.
	ErrActiveSessionNotFound = errors.New("active session not found")
)

// errSessionAlreadyClosed signals a lost race on the active → ended flip;
// the winning close already credited the session.
var errSessionAlreadyClosed = errors.New("session already closed")

// StaleHeartbeatAfter marks a session stale for display purposes only;
// staleness never closes a session, only the 24h cap does.
const StaleHeartbeatAfter = 5 * time.Minute

// PerformanceMetrics is the client-reported resource snapshot on a heartbeat.
type PerformanceMetrics struct {
	CPUUsage       float64 `json:"cpuUsage"`       // percent
	MemoryUsage    float64 `json:"memoryUsage"`    // MB
	NetworkLatency float64 `json:"networkLatency"` // ms
}

// NetworkInfo and Geolocation are informational context carried on heartbeats.
type NetworkInfo struct {
	Type string `json:"type,omitempty"`
}

type Geolocation struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// HeartbeatRequest mirrors the POST /node/heartbeat body. ErrorCount and
// WarningCount are deltas since the client's previous heartbeat.
type HeartbeatRequest struct {
	WalletAddress      string             `json:"walletAddress"`
	SessionID          string             `json:"sessionId"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
	NetworkInfo        NetworkInfo        `json:"networkInfo"`
	Geolocation        Geolocation        `json:"geolocation"`
	ErrorCount         int                `json:"errorCount"`
	WarningCount       int                `json:"warningCount"`
}

type NodeService struct {
	DB *gorm.DB
}

func NewNodeService(db *gorm.DB) *NodeService {
	return &NodeService{DB: db}
}

// StartNode transitions Stopped → Running: creates an active session with a
// fresh server-generated sessionId and flips the user's node state.
func (s *NodeService) StartNode(walletAddress string) (*models.Session, *models.User, error) {
	if walletAddress == "" {
		return nil, nil, ErrWalletNotConnected
	}

	var session *models.Session
	var user *models.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = ensureUser(tx, walletAddress)
		if err != nil {
			return err
		}

		// Optimistic guard; the partial unique index catches the race
		// between two near-simultaneous starts.
		var existing models.Session
		err = tx.Where("wallet_address = ? AND status = ?", walletAddress, models.SessionStatusActive).
			First(&existing).Error
		if err == nil {
			return ErrAlreadyRunning
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		session = &models.Session{
			ID:               uuid.NewString(),
			SessionID:        uuid.NewString(),
			WalletAddress:    walletAddress,
			StartTime:        now,
			Status:           models.SessionStatusActive,
			LastHeartbeat:    now,
			NodeQuality:      models.NodeQualityBronze,
			PerformanceScore: 100,
		}
		if err := tx.Create(session).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRunning
			}
			return err
		}

		user.NodeStatus = true
		user.NodeStartTime = &now
		return tx.Save(user).Error
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("⚡ Node started for %s (session %s)", walletAddress, session.SessionID)
	return session, user, nil
}

// StopNode transitions Running → Stopped, computing uptime and points from
// the server clock only. Stopping an already-stopped node returns the prior
// result instead of erroring, so client retry storms are harmless.
func (s *NodeService) StopNode(walletAddress string, autoStopped bool) (*models.Session, *models.User, error) {
	if walletAddress == "" {
		return nil, nil, ErrWalletNotConnected
	}

	var session models.Session
	var user *models.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("wallet_address = ? AND status = ?", walletAddress, models.SessionStatusActive).
			First(&session).Error
		if err == nil {
			user, err = s.closeSession(tx, &session, time.Now(), autoStopped)
			if err == nil {
				return nil
			}
			if !errors.Is(err, errSessionAlreadyClosed) {
				return err
			}
			// A concurrent stop won the close; fall through to the retry path.
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Idempotent retry path: return the most recently ended session.
		err = tx.Where("wallet_address = ? AND status = ?", walletAddress, models.SessionStatusEnded).
			Order("end_time DESC").
			First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrActiveSessionNotFound
		}
		if err != nil {
			return err
		}
		user, err = ensureUser(tx, walletAddress)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &session, user, nil
}

// closeSession ends a session and credits accrued points. The session
// update, user credit and ledger append share the caller's transaction.
func (s *NodeService) closeSession(tx *gorm.DB, session *models.Session, now time.Time, autoStopped bool) (*models.User, error) {
	uptime := int64(now.Sub(session.StartTime).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	if uptime >= MaxSessionUptime {
		uptime = MaxSessionUptime
		autoStopped = true
	}

	quality := session.NodeQuality
	if quality == "" {
		quality = models.NodeQualityBronze
	}
	points := float64(uptime) * BasePointsRate * QualityMultiplier(quality)

	session.EndTime = &now
	session.Status = models.SessionStatusEnded
	session.Uptime = uptime
	session.PointsEarned = points
	session.AutoStopped = autoStopped
	// Conditional flip: only the write that catches the row still active
	// gets to credit it, so concurrent stops cannot double-count.
	res := tx.Model(&models.Session{}).
		Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"end_time":      now,
			"status":        models.SessionStatusEnded,
			"uptime":        uptime,
			"points_earned": points,
			"auto_stopped":  autoStopped,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to close session %s: %w", session.SessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errSessionAlreadyClosed
	}

	user, err := ensureUser(tx, session.WalletAddress)
	if err != nil {
		return nil, err
	}

	subSource := "manual-stop"
	if autoStopped {
		subSource = "auto-stop"
	}
	if _, err := creditPoints(tx, user, points, "node-running", subSource, now); err != nil {
		return nil, err
	}

	user.Uptime += uptime
	user.NodeStatus = false
	user.NodeStartTime = nil
	if err := tx.Save(user).Error; err != nil {
		return nil, err
	}

	log.Printf("🛑 Node stopped for %s: %ds uptime, %.1f pts (%s, auto=%t)",
		session.WalletAddress, uptime, points, quality, autoStopped)
	return user, nil
}

// Heartbeat refreshes an active session: latest-wins lastHeartbeat, additive
// error/warning merge, uptime/score/quality recompute. A session past the
// 24h cap is force-closed here rather than refreshed.
func (s *NodeService) Heartbeat(req HeartbeatRequest) (*models.Session, error) {
	if req.WalletAddress == "" {
		return nil, ErrWalletNotConnected
	}

	var session models.Session
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		query := tx.Where("wallet_address = ? AND status = ?", req.WalletAddress, models.SessionStatusActive)
		if req.SessionID != "" {
			query = query.Where("session_id = ?", req.SessionID)
		}
		if err := query.First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrActiveSessionNotFound
			}
			return err
		}

		now := time.Now()
		if now.Sub(session.StartTime) >= time.Duration(MaxSessionUptime)*time.Second {
			_, err := s.closeSession(tx, &session, now, true)
			if errors.Is(err, errSessionAlreadyClosed) {
				return ErrActiveSessionNotFound
			}
			return err
		}

		// Counters merge in SQL so a concurrent heartbeat's increments are
		// never lost to this read-modify-write.
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"error_count":   gorm.Expr("error_count + ?", req.ErrorCount),
				"warning_count": gorm.Expr("warning_count + ?", req.WarningCount),
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", session.ID).First(&session).Error; err != nil {
			return err
		}

		if now.After(session.LastHeartbeat) {
			session.LastHeartbeat = now
		}
		session.CPUUsage = req.PerformanceMetrics.CPUUsage
		session.MemoryUsage = req.PerformanceMetrics.MemoryUsage
		session.NetworkLatency = req.PerformanceMetrics.NetworkLatency
		if req.NetworkInfo.Type != "" {
			session.NetworkType = req.NetworkInfo.Type
		}
		if req.Geolocation.Country != "" {
			session.Country = req.Geolocation.Country
			session.City = req.Geolocation.City
		}

		session.Uptime = int64(now.Sub(session.StartTime).Seconds())
		session.PerformanceScore = PerformanceScore(
			session.CPUUsage, session.MemoryUsage, session.NetworkLatency,
			session.ErrorCount, session.WarningCount,
		)
		session.NodeQuality = ClassifyQuality(session.PerformanceScore, session.Uptime, session.ErrorCount)

		// Counters stay out of this write; they only move via the SQL merge.
		return tx.Model(&session).Select(
			"last_heartbeat", "cpu_usage", "memory_usage", "network_latency",
			"network_type", "country", "city",
			"uptime", "performance_score", "node_quality",
		).Updates(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Snapshot returns the authoritative state clients hydrate from: the user
// aggregate, the active session if any, and whether it has gone stale.
func (s *NodeService) Snapshot(walletAddress string) (*models.User, *models.Session, bool, error) {
	if walletAddress == "" {
		return nil, nil, false, ErrWalletNotConnected
	}

	var user *models.User
	var session *models.Session
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = ensureUser(tx, walletAddress)
		if err != nil {
			return err
		}

		var active models.Session
		err = tx.Where("wallet_address = ? AND status = ?", walletAddress, models.SessionStatusActive).
			First(&active).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		session = &active
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}

	stale := session != nil && time.Since(session.LastHeartbeat) > StaleHeartbeatAfter
	return user, session, stale, nil
}

// DailyBucket aggregates one calendar day of session history.
type DailyBucket struct {
	Date     string  `json:"date"`
	Sessions int     `json:"sessions"`
	Uptime   int64   `json:"uptime"`
	Points   float64 `json:"points"`
}

// SessionHistory is the read-only aggregation behind GET /sessions.
type SessionHistory struct {
	Sessions      []models.Session `json:"sessions"`
	TotalSessions int              `json:"totalSessions"`
	TotalUptime   int64            `json:"totalUptime"`
	TotalPoints   float64          `json:"totalPoints"`
	Daily         []DailyBucket    `json:"daily"`
}

// GetSessionHistory returns sessions started in the last N days, newest
// first, with per-day rollups.
func (s *NodeService) GetSessionHistory(walletAddress string, days int) (*SessionHistory, error) {
	if walletAddress == "" {
		return nil, ErrWalletNotConnected
	}
	if days < 1 || days > 365 {
		days = 30
	}

	since := time.Now().AddDate(0, 0, -days)
	var sessions []models.Session
	if err := s.DB.Where("wallet_address = ? AND start_time >= ?", walletAddress, since).
		Order("start_time DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}

	history := &SessionHistory{
		Sessions:      sessions,
		TotalSessions: len(sessions),
	}

	buckets := map[string]*DailyBucket{}
	var order []string
	for _, sess := range sessions {
		history.TotalUptime += sess.Uptime
		history.TotalPoints += sess.PointsEarned

		day := sess.StartTime.Local().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &DailyBucket{Date: day}
			buckets[day] = b
			order = append(order, day)
		}
		b.Sessions++
		b.Uptime += sess.Uptime
		b.Points += sess.PointsEarned
	}
	for _, day := range order {
		history.Daily = append(history.Daily, *buckets[day])
	}
	return history, nil
}

// ForceCloseExpired closes every active session whose continuous runtime has
// reached the 24h cap. Runs from the scheduler so the cap holds even when no
// client is open.
func (s *NodeService) ForceCloseExpired(now time.Time) (int, error) {
	cutoff := now.Add(-time.Duration(MaxSessionUptime) * time.Second)

	var expired []models.Session
	if err := s.DB.Where("status = ? AND start_time <= ?", models.SessionStatusActive, cutoff).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	closed := 0
	for i := range expired {
		session := expired[i]
		didClose := false
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			// Re-read under the transaction; a client stop may have won.
			var current models.Session
			if err := tx.Where("session_id = ? AND status = ?", session.SessionID, models.SessionStatusActive).
				First(&current).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			if _, err := s.closeSession(tx, &current, now, true); err != nil {
				if errors.Is(err, errSessionAlreadyClosed) {
					return nil
				}
				return err
			}
			didClose = true
			return nil
		})
		if err != nil {
			log.Printf("❌ [Sweeper] Failed to force-close session %s: %v", session.SessionID, err)
			continue
		}
		if didClose {
			closed++
		}
	}
	return closed, nil
}
