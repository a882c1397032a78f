package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/MdShahriya/LNODE-sub000/models"
	"github.com/MdShahriya/LNODE-sub000/utils"
)

// ExportLedgerDay snapshots one calendar day of the append-only ledger to a
// CSV object in R2 (key ledger/YYYY-MM-DD.csv). Returns the object key and
// row count; days with no entries are skipped without an upload.
func (s *NodeService) ExportLedgerDay(day time.Time) (string, int, error) {
	local := day.Local()
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	end := start.AddDate(0, 0, 1)

	var entries []models.PointsLedgerEntry
	if err := s.DB.Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&entries).Error; err != nil {
		return "", 0, fmt.Errorf("failed to load ledger entries: %w", err)
	}
	if len(entries) == 0 {
		return "", 0, nil
	}

	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"id", "wallet_address", "points", "balance_before", "balance_after", "source", "sub_source", "transaction_type", "timestamp"})
	for _, e := range entries {
		_ = w.Write([]string{
			e.ID,
			e.WalletAddress,
			strconv.FormatFloat(e.Points, 'f', -1, 64),
			strconv.FormatFloat(e.BalanceBefore, 'f', -1, 64),
			strconv.FormatFloat(e.BalanceAfter, 'f', -1, 64),
			e.Source,
			e.SubSource,
			string(e.TransactionType),
			e.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, err
	}

	key := fmt.Sprintf("ledger/%s.csv", start.Format("2006-01-02"))
	if _, err := utils.UploadBytesToR2(buf.Bytes(), key, "text/csv"); err != nil {
		return "", 0, err
	}
	return key, len(entries), nil
}
