package pdf

import (
	"testing"

	"github.com/jonathan/esg-extractor/internal/pdf/pdftest"
)

func writePDF(t *testing.T, pages []string) string {
	t.Helper()
	return pdftest.Write(t, t.TempDir(), "Acme_2023.pdf", pages...)
}
