package domain

import "errors"

var (
	ErrLockTimeout      = errors.New("lock_timeout")
	ErrStoreUnavailable = errors.New("store_unavailable")
	ErrSchemaMissing    = errors.New("schema_missing")

	ErrBagNotFound    = errors.New("bag_not_found")
	ErrDuplicateUsage = errors.New("duplicate_usage")

	ErrInvalidPlant  = errors.New("invalid_plant")
	ErrInvalidBatch  = errors.New("invalid_batch")
	ErrInvalidCount  = errors.New("invalid_count")
	ErrInvalidBagID  = errors.New("invalid_bag_id")
	ErrInvalidWorker = errors.New("invalid_worker")
)
