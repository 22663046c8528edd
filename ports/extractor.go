package ports

import (
	"context"

	"flomentum/domain/upload"
)

// LabExtractor turns a lab document into structured rows via an external
// AI vendor. Calls must honour context cancellation; a timed-out call must
// never wedge the owning job.
type LabExtractor interface {
	// ExtractLabReport parses a PDF into raw biomarkers plus report metadata
	ExtractLabReport(ctx context.Context, pdf []byte) (*upload.ExtractedReport, error)
}
