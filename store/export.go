package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ExportCSV renders the full corpus as CSV with a fixed header row.
func (s *Store) ExportCSV(ctx context.Context) (string, error) {
	prompts, err := s.List(ctx)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	w := csv.NewWriter(&out)
	if err := w.Write([]string{"id", "version", "q_score", "text", "tags"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range prompts {
		record := []string{
			p.ID.String(),
			strconv.Itoa(p.Version),
			strconv.FormatFloat(p.QScore, 'f', 4, 64),
			p.Text,
			strings.Join(p.Tags, ","),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// ExportJSON renders the full corpus as a JSON array.
func (s *Store) ExportJSON(ctx context.Context) ([]byte, error) {
	prompts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = []Prompt{}
	}
	return json.MarshalIndent(prompts, "", "  ")
}
