package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDFText converts PDF bytes to a single text blob, page content
// reassembled in page order. pdfcpu has no direct text-extraction API, so
// this writes the PDF to a temp file and uses its content-extraction command,
// matching the approach of the pack's pdf extractor service.
func extractPDFText(pdfBytes []byte) (string, error) {
	tempDir, err := os.MkdirTemp("", "docpipeline-pdf")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(tempFile, pdfBytes, 0o644); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("read pdf context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(tempDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read extracted content: %w", err)
	}
	pageTexts := make(map[int]string, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, f.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, scanErr := fmt.Sscanf(f.Name(), "Content_page_%d", &pageNum); scanErr == nil {
			pageTexts[pageNum] = string(content)
		} else if _, scanErr := fmt.Sscanf(f.Name(), "page_%d", &pageNum); scanErr == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var sb strings.Builder
	for p := 1; p <= pageCount; p++ {
		text, ok := pageTexts[p]
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
