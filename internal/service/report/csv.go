// internal/service/report/csv.go
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"

	"github.com/gofrs/uuid"
)

// CSV renders the raw session log, one row per closed session. Headers
// reuse the friendly labels so the file opens readable in a spreadsheet.
func (s *Service) CSV(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	logs, _, err := s.usage.Usage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{
		friendlyLabels["sessions_sample[].start_iso"],
		friendlyLabels["sessions_sample[].end_iso"],
		friendlyLabels["sessions_sample[].domain"],
		friendlyLabels["sessions_sample[].duration_seconds"],
	}); err != nil {
		return nil, err
	}

	for _, l := range logs {
		sec := int64(math.Round(float64(l.End-l.Start) / 1000))
		if sec < 0 {
			sec = 0
		}
		if err := w.Write([]string{
			fmt.Sprintf("%d", l.Start),
			fmt.Sprintf("%d", l.End),
			l.Domain,
			fmt.Sprintf("%d", sec),
		}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
