package export

import (
	"context"

	"tallybook/internal/core"
)

// Ports for outbound ledger adapters.
type (
	// LedgerWriter appends one transaction to the external ledger and
	// returns a reference to where it landed.
	LedgerWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
