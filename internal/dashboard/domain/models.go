package domain

import "context"

// Stats are the ledger-wide totals shown on the dashboard.
type Stats struct {
	TotalBags         int64 `json:"totalBags"`
	TotalUsageRecords int64 `json:"totalUsageRecords"`
}

type Service interface {
	GetStats(ctx context.Context) (*Stats, error)
}
