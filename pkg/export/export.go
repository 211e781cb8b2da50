package export

import "fmt"

// Format names an output encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Renderer encodes a dataset in one format.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
}

// RendererFor returns the renderer of format.
func RendererFor(format Format) (Renderer, error) {
	switch format {
	case FormatCSV, "":
		return NewCSVExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
