package batch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/sensevis/internal/monitoring"
)

// Report summarises one batch run.
type Report struct {
	Rows     int `json:"rows"`
	Rendered int `json:"rendered"`
	Skipped  int `json:"skipped"`
}

// Handler renders one valid row. A handler error aborts the run.
type Handler func(ctx context.Context, row Row) error

// Run feeds every valid row of r to handle, sequentially. Malformed rows are
// logged and skipped. The context is checked between rows.
func Run(ctx context.Context, r io.Reader, handle Handler) (Report, error) {
	var rep Report
	rd := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		row, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			rep.Rows++
			rep.Skipped++
			monitoring.Logf("Row %d: %v, skipping", rowErr.Index, rowErr.Err)
			continue
		}
		if err != nil {
			return rep, err
		}
		rep.Rows++
		if err := handle(ctx, row); err != nil {
			return rep, fmt.Errorf("row %d: %w", row.Index, err)
		}
		rep.Rendered++
	}
}

// Processor binds a Handler so a batch can be re-run over several inputs.
type Processor struct {
	Handle Handler
}

// Run is Run(ctx, r, p.Handle).
func (p *Processor) Run(ctx context.Context, r io.Reader) (Report, error) {
	return Run(ctx, r, p.Handle)
}
