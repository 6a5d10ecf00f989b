package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Info describes a local file about to be uploaded.
type Info struct {
	Path  string
	Size  int64
	Pages int
}

// Inspect checks that path is a readable PDF and counts its pages.
func Inspect(path string) (Info, error) {
	info := Info{Path: path}
	stat, err := os.Stat(path)
	if err != nil {
		return info, err
	}
	if stat.IsDir() {
		return info, fmt.Errorf("%s is a directory", path)
	}
	info.Size = stat.Size()
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return info, fmt.Errorf("%s does not look like a pdf", path)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return info, fmt.Errorf("count pages: %w", err)
	}
	info.Pages = pages
	return info, nil
}
