package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds every database transaction opened by a use case.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultPortfolioConcurrency is the number of positions valued in parallel.
	DefaultPortfolioConcurrency = 4

	// snapshotSourceAPI labels snapshots submitted directly through Run.
	snapshotSourceAPI = "api"
)
