package domain

import "context"

type RegisterBatchRequest struct {
	Plant string `json:"plant"`
	Batch string `json:"batch"`
	Count int    `json:"count"`
}

type RegisterBatchResponse struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	IDs     []string `json:"ids"`
}

// Service registers production batches of cement bags.
type Service interface {
	RegisterBatch(ctx context.Context, req RegisterBatchRequest) (*RegisterBatchResponse, error)
}
