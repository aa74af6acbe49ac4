// Package warehouse loads categorized batches into the analytical warehouse.
package warehouse

import (
	"context"
	"time"
)

// Loader writes batches to named tables.
type Loader interface {
	// Load writes batch to table with the given disposition and returns the
	// number of rows the warehouse reports as written.
	Load(ctx context.Context, table string, batch Batch, disposition WriteDisposition) (int64, error)

	// LastModified returns the table's last modification time. ok is false
	// when the table does not exist yet.
	LastModified(ctx context.Context, table string) (t time.Time, ok bool, err error)
}
