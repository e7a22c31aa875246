// Package archive defines the outbound port for durable settlement records.
package archive

import (
	"context"

	"rejestr/internal/core"
)

// SettlementWriter appends a settled transaction to an external archive and
// returns a backend-specific reference to where it landed.
type SettlementWriter interface {
	Append(ctx context.Context, rec core.SettlementRecord) (ref string, err error)
}
