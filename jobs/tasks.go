package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan scans for products at or below their reorder level.
	TaskLowStockScan = "stock:lowstock_scan"
	// TaskLedgerVerify replays the ledger and compares it against balances.
	TaskLedgerVerify = "stock:ledger_verify"
)

// LowStockScanPayload configures one low-stock scan run.
type LowStockScanPayload struct {
	// IncludeInactive also scans products flagged inactive.
	IncludeInactive bool `json:"include_inactive"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// LedgerVerifyPayload configures one integrity check run.
type LedgerVerifyPayload struct {
	// ProductID restricts the check to one product; zero checks everything.
	ProductID int64 `json:"product_id"`
}

// NewLedgerVerifyTask constructs an Asynq task.
func NewLedgerVerifyTask(payload LedgerVerifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerVerify, data), nil
}
