package quiz

import (
	"context"
	"time"
)

// Renderer turns a URL into rendered HTML and visible text. Failures are
// returned as *RenderError.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
}

// Downloader fetches the raw bytes behind a file link.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// FileKind names a document format the parsers understand.
type FileKind string

// Supported document kinds.
const (
	FileKindUnknown     FileKind = ""
	FileKindPDF         FileKind = "pdf"
	FileKindCSV         FileKind = "csv"
	FileKindSpreadsheet FileKind = "spreadsheet"
)

// ColumnSummer sums the configured column of a document. The boolean is false
// when the format is unreadable or the column is missing.
type ColumnSummer interface {
	Sum(kind FileKind, data []byte) (float64, bool)
}

// SubmitOutcome is what the submission client observed for one POST.
type SubmitOutcome struct {
	StatusCode int
	Excerpt    string
	Response   *SubmitResponse
}

// Submitter posts an answer payload. Errors are *PayloadTooLargeError,
// *SubmitNetworkError or *SubmitParseError; the outcome is populated as far
// as the call got.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, payload SubmissionPayload) (SubmitOutcome, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
