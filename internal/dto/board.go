package dto

// BoardExportFormat enumerates supported board export encodings.
type BoardExportFormat string

const (
	BoardExportCSV BoardExportFormat = "csv"
	BoardExportPDF BoardExportFormat = "pdf"
)

// BoardExport is a rendered board ready to be streamed.
type BoardExport struct {
	Filename    string
	ContentType string
	Body        []byte
}
