package runner

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"crawlorch/internal/domain/entity"
)

// WriteCSV renders rows to ./logs/{prefix}_{taskID}_{timestamp}.csv
// (or the "_cancelled_" variant when cancelled is true), prefixed with a
// UTF-8 byte-order mark so spreadsheet tools that sniff encoding by BOM
// render non-ASCII titles correctly. Returns the path written.
//
// encoding/csv (stdlib) is used directly here: none of the example repos
// carry a third-party CSV-writing library, and a BOM-prefixed writer is a
// handful of lines, not a dependency's worth of surface.
func WriteCSV(prefix string, taskID int64, timestamp string, cancelled bool, rows []*entity.Article) (string, error) {
	if err := os.MkdirAll("./logs", 0o755); err != nil {
		return "", fmt.Errorf("WriteCSV: mkdir logs: %w", err)
	}

	name := fmt.Sprintf("%s_%d_%s.csv", prefix, taskID, timestamp)
	if cancelled {
		name = fmt.Sprintf("%s_cancelled_%d_%s.csv", prefix, taskID, timestamp)
	}
	path := filepath.Join("./logs", name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("WriteCSV: create: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return "", fmt.Errorf("WriteCSV: write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	header := []string{"link", "title", "summary", "published_at", "scrape_status", "is_partial_save"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("WriteCSV: header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Link,
			row.Title,
			row.Summary,
			row.PublishedAt.Format("2006-01-02T15:04:05Z07:00"),
			string(row.ScrapeStatus),
			fmt.Sprintf("%t", row.IsPartialSave),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("WriteCSV: row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return path, nil
}
