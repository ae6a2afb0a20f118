package domain

import (
	"context"

	ledgerdomain "github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/pkg/db/pagination"
)

type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type RecordUsageRequest struct {
	BagID       string `json:"bag_id"`
	WorkerID    string `json:"worker_id"`
	SiteID      string `json:"site_id"`
	PhotoBase64 string `json:"photo_base64"`
	Geo         *Geo   `json:"geo"`
}

type RecordUsageResponse struct {
	Success bool   `json:"success"`
	UsageID string `json:"usage_id"`
	// Duplicate is set when the bag was already USED before this event.
	Duplicate bool `json:"duplicate,omitempty"`
}

type ListUsageRequest struct {
	BagID     string `json:"bag_id"`
	PageToken string `json:"page_token"`
	PageSize  int    `json:"page_size"`
}

type ListUsageResponse struct {
	pagination.PageInfo
	UsageRecords []*ledgerdomain.UsageRecord `json:"usage_records"`
}

// Service records cement bag consumption.
type Service interface {
	RecordUsage(ctx context.Context, req RecordUsageRequest) (*RecordUsageResponse, error)
	List(ctx context.Context, req ListUsageRequest) (ListUsageResponse, error)
}
