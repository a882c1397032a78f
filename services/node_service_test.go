package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MdShahriya/LNODE-sub000/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

// backdateSession rewrites a session's start time (and optionally quality)
// to simulate elapsed runtime without sleeping.
func backdateSession(t *testing.T, db *gorm.DB, sessionID string, age time.Duration, quality models.NodeQuality) {
	t.Helper()
	updates := map[string]interface{}{"start_time": time.Now().Add(-age)}
	if quality != "" {
		updates["node_quality"] = quality
	}
	require.NoError(t, db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error)
}

func TestStartNode(t *testing.T) {
	svc := NewNodeService(newTestDB(t))

	session, user, err := svc.StartNode("0xabc")
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, models.SessionStatusActive, session.Status)
	assert.Equal(t, models.NodeQualityBronze, session.NodeQuality)
	assert.True(t, user.NodeStatus)
	require.NotNil(t, user.NodeStartTime)
}

func TestStartNodeWithoutWallet(t *testing.T) {
	svc := NewNodeService(newTestDB(t))

	_, _, err := svc.StartNode("")
	assert.ErrorIs(t, err, ErrWalletNotConnected)
}

func TestStartNodeAlreadyRunning(t *testing.T) {
	svc := NewNodeService(newTestDB(t))

	_, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)

	_, _, err = svc.StartNode("0xabc")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	// A different wallet is unaffected.
	_, _, err = svc.StartNode("0xdef")
	assert.NoError(t, err)
}

func TestStopNodeAccrual(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)
	backdateSession(t, db, started.SessionID, time.Hour, models.NodeQualityGold)

	session, user, err := svc.StopNode("0xabc", false)
	require.NoError(t, err)

	// 3600s × 0.2 × 1.5 = 1080
	assert.Equal(t, models.SessionStatusEnded, session.Status)
	assert.InDelta(t, 3600, session.Uptime, 2)
	assert.InDelta(t, 1080.0, session.PointsEarned, 1.0)
	assert.InDelta(t, 1080.0, user.Points, 1.0)
	assert.InDelta(t, 3600, user.Uptime, 2)
	assert.False(t, user.NodeStatus)
	assert.Nil(t, user.NodeStartTime)
	assert.InDelta(t, 1080.0, user.DailyEarnings, 1.0)

	var entry models.PointsLedgerEntry
	require.NoError(t, db.Where("wallet_address = ?", "0xabc").First(&entry).Error)
	assert.Equal(t, "node-running", entry.Source)
	assert.Equal(t, "manual-stop", entry.SubSource)
	assert.Equal(t, models.TransactionTypeCredit, entry.TransactionType)
	assert.Equal(t, 0.0, entry.BalanceBefore)
	assert.InDelta(t, 1080.0, entry.BalanceAfter, 1.0)
}

func TestStopNodeCapsAt24Hours(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)
	backdateSession(t, db, started.SessionID, 30*time.Hour, "")

	session, user, err := svc.StopNode("0xabc", false)
	require.NoError(t, err)

	assert.Equal(t, MaxSessionUptime, session.Uptime)
	assert.Equal(t, float64(MaxSessionUptime)*BasePointsRate, session.PointsEarned)
	assert.True(t, session.AutoStopped)
	assert.Equal(t, MaxSessionUptime, user.Uptime)
}

func TestStopNodeIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)
	backdateSession(t, db, started.SessionID, time.Hour, "")

	first, _, err := svc.StopNode("0xabc", false)
	require.NoError(t, err)

	// Retry storm: repeating stop returns the prior result, mutates nothing.
	second, user, err := svc.StopNode("0xabc", false)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.PointsEarned, second.PointsEarned)
	assert.InDelta(t, first.PointsEarned, user.Points, 0.001)

	var ledgerCount int64
	require.NoError(t, db.Model(&models.PointsLedgerEntry{}).
		Where("wallet_address = ?", "0xabc").Count(&ledgerCount).Error)
	assert.Equal(t, int64(1), ledgerCount)
}

// A rival stop commits between this stop's read of the active session and
// its close write. Only the winner may credit; this path must fall through
// to the idempotent branch and append nothing.
func TestStopNodeConcurrentStopCreditsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)
	backdateSession(t, db, started.SessionID, time.Hour, "")

	armed := false
	rivalEnd := time.Now()
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("rival_stop", func(d *gorm.DB) {
		if !armed {
			return
		}
		armed = false
		if _, execErr := d.Statement.ConnPool.ExecContext(d.Statement.Context,
			"UPDATE sessions SET status = ?, end_time = ?, points_earned = 720 WHERE session_id = ?",
			string(models.SessionStatusEnded), rivalEnd, started.SessionID); execErr != nil {
			t.Errorf("rival stop failed: %v", execErr)
		}
	}))

	armed = true
	session, user, err := svc.StopNode("0xabc", false)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, session.Status)
	assert.Equal(t, 720.0, session.PointsEarned, "the close that won the race stands")

	var ledgerCount int64
	require.NoError(t, db.Model(&models.PointsLedgerEntry{}).
		Where("wallet_address = ?", "0xabc").Count(&ledgerCount).Error)
	assert.Zero(t, ledgerCount, "the losing stop must not append a credit")
	assert.Equal(t, 0.0, user.Points)
}

func TestStopNodeNeverStarted(t *testing.T) {
	svc := NewNodeService(newTestDB(t))

	_, _, err := svc.StopNode("0xnobody", false)
	assert.ErrorIs(t, err, ErrActiveSessionNotFound)
}

func TestHeartbeatMergesAdditively(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)

	session, err := svc.Heartbeat(HeartbeatRequest{
		WalletAddress:      "0xabc",
		SessionID:          started.SessionID,
		PerformanceMetrics: PerformanceMetrics{CPUUsage: 45, MemoryUsage: 600, NetworkLatency: 60},
		ErrorCount:         2,
		WarningCount:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, session.ErrorCount)
	assert.Equal(t, 1, session.WarningCount)
	// 100 − 5 (cpu) − 3 (mem) − 3 (latency) − 10 (errors) − 2 (warnings)
	assert.Equal(t, 77.0, session.PerformanceScore)
	assert.Equal(t, models.NodeQualityBronze, session.NodeQuality) // low uptime

	session, err = svc.Heartbeat(HeartbeatRequest{
		WalletAddress: "0xabc",
		SessionID:     started.SessionID,
		ErrorCount:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, session.ErrorCount, "error counts merge additively, never overwrite")
	assert.Equal(t, 1, session.WarningCount)
}

// A rival heartbeat commits an increment between this heartbeat's read and
// its writes. The merge must keep both increments; a full-row write would
// silently drop the rival's.
func TestHeartbeatCountersSurviveConcurrentWrites(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)

	armed := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("rival_heartbeat", func(d *gorm.DB) {
		if !armed {
			return
		}
		armed = false
		if _, execErr := d.Statement.ConnPool.ExecContext(d.Statement.Context,
			"UPDATE sessions SET error_count = error_count + 10 WHERE session_id = ?",
			started.SessionID); execErr != nil {
			t.Errorf("rival heartbeat failed: %v", execErr)
		}
	}))

	armed = true
	session, err := svc.Heartbeat(HeartbeatRequest{
		WalletAddress: "0xabc",
		SessionID:     started.SessionID,
		ErrorCount:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, session.ErrorCount, "concurrent increments merge, never overwrite")

	var stored models.Session
	require.NoError(t, db.Where("session_id = ?", started.SessionID).First(&stored).Error)
	assert.Equal(t, 12, stored.ErrorCount)
}

func TestHeartbeatNoActiveSession(t *testing.T) {
	svc := NewNodeService(newTestDB(t))

	_, err := svc.Heartbeat(HeartbeatRequest{WalletAddress: "0xabc", SessionID: "missing"})
	assert.ErrorIs(t, err, ErrActiveSessionNotFound)
}

func TestHeartbeatWrongSessionID(t *testing.T) {
	svc := NewNodeService(newTestDB(t))

	_, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)

	_, err = svc.Heartbeat(HeartbeatRequest{WalletAddress: "0xabc", SessionID: "stale-token"})
	assert.ErrorIs(t, err, ErrActiveSessionNotFound)
}

func TestHeartbeatForceClosesPastCap(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)
	backdateSession(t, db, started.SessionID, 25*time.Hour, "")

	session, err := svc.Heartbeat(HeartbeatRequest{WalletAddress: "0xabc", SessionID: started.SessionID})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, session.Status)
	assert.True(t, session.AutoStopped)
	assert.Equal(t, MaxSessionUptime, session.Uptime)
}

func TestForceCloseExpired(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	expired, _, err := svc.StartNode("0xold")
	require.NoError(t, err)
	backdateSession(t, db, expired.SessionID, 25*time.Hour, "")

	fresh, _, err := svc.StartNode("0xnew")
	require.NoError(t, err)

	closed, err := svc.ForceCloseExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	var oldSession, newSession models.Session
	require.NoError(t, db.Where("session_id = ?", expired.SessionID).First(&oldSession).Error)
	require.NoError(t, db.Where("session_id = ?", fresh.SessionID).First(&newSession).Error)
	assert.Equal(t, models.SessionStatusEnded, oldSession.Status)
	assert.True(t, oldSession.AutoStopped)
	assert.Equal(t, MaxSessionUptime, oldSession.Uptime)
	assert.Equal(t, models.SessionStatusActive, newSession.Status)

	var user models.User
	require.NoError(t, db.Where("wallet_address = ?", "0xold").First(&user).Error)
	assert.False(t, user.NodeStatus)
	assert.Equal(t, float64(MaxSessionUptime)*BasePointsRate, user.Points)
}

func TestSnapshot(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	user, session, stale, err := svc.Snapshot("0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", user.WalletAddress)
	assert.Nil(t, session)
	assert.False(t, stale)

	started, _, err := svc.StartNode("0xabc")
	require.NoError(t, err)

	_, session, stale, err = svc.Snapshot("0xabc")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, started.SessionID, session.SessionID)
	assert.False(t, stale)

	// A silent client makes the session stale, but never closes it.
	require.NoError(t, db.Model(&models.Session{}).
		Where("session_id = ?", started.SessionID).
		Update("last_heartbeat", time.Now().Add(-6*time.Minute)).Error)

	_, session, stale, err = svc.Snapshot("0xabc")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, stale)
	assert.Equal(t, models.SessionStatusActive, session.Status)
}

func TestGetSessionHistory(t *testing.T) {
	db := newTestDB(t)
	svc := NewNodeService(db)

	now := time.Now()
	end1 := now.Add(-2 * 24 * time.Hour)
	end2 := now.Add(-1 * time.Hour)
	sessions := []models.Session{
		{ID: "h1", SessionID: "h1", WalletAddress: "0xabc", StartTime: end1.Add(-time.Hour),
			EndTime: &end1, Status: models.SessionStatusEnded, Uptime: 3600, PointsEarned: 720},
		{ID: "h2", SessionID: "h2", WalletAddress: "0xabc", StartTime: end2.Add(-2 * time.Hour),
			EndTime: &end2, Status: models.SessionStatusEnded, Uptime: 7200, PointsEarned: 1440},
		{ID: "h3", SessionID: "h3", WalletAddress: "0xabc", StartTime: now.AddDate(0, 0, -40),
			Status: models.SessionStatusEnded, Uptime: 100, PointsEarned: 20},
		{ID: "h4", SessionID: "h4", WalletAddress: "0xother", StartTime: now.Add(-time.Hour),
			Status: models.SessionStatusEnded, Uptime: 50, PointsEarned: 10},
	}
	require.NoError(t, db.Create(&sessions).Error)

	history, err := svc.GetSessionHistory("0xabc", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, history.TotalSessions) // 40-day-old and foreign sessions excluded
	assert.Equal(t, int64(10800), history.TotalUptime)
	assert.Equal(t, 2160.0, history.TotalPoints)
	assert.Len(t, history.Daily, 2)
	// Newest first, same order as the session list.
	assert.Equal(t, "h2", history.Sessions[0].SessionID)
}
