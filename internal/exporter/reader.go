package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/dshills/semcluster/pkg/types"
)

// ErrMissingTermColumn is returned for a CSV file without a term column
var ErrMissingTermColumn = errors.New("csv input has no term column")

// ReadKeywordsFile loads keywords from a .csv or .json file.
// JSON input is an array of keyword objects or plain term strings; CSV input
// uses the export column names and needs at least a term column.
func ReadKeywordsFile(path string) ([]*types.Keyword, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ReadCSV(f)
	case ".json":
		return ReadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ReadJSON decodes an array whose items are keyword objects or term strings
func ReadJSON(r io.Reader) ([]*types.Keyword, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}

	keywords := make([]*types.Keyword, 0, len(items))
	for i, raw := range items {
		var term string
		if err := json.Unmarshal(raw, &term); err == nil {
			keywords = append(keywords, &types.Keyword{Term: term})
			continue
		}
		var kw types.Keyword
		if err := json.Unmarshal(raw, &kw); err != nil {
			return nil, fmt.Errorf("decode keyword %d: %w", i, err)
		}
		keywords = append(keywords, &kw)
	}
	return keywords, nil
}

// ReadCSV parses rows with a header line. Unknown columns are ignored and
// empty numeric cells read as zero.
func ReadCSV(r io.Reader) ([]*types.Keyword, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["term"]; !ok {
		return nil, ErrMissingTermColumn
	}

	var keywords []*types.Keyword
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		cell := func(name string) string {
			if i, ok := cols[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		kw := &types.Keyword{Term: cell("term"), Intent: cell("intent")}
		for name, dst := range map[string]*float64{
			"search_volume": &kw.Volume,
			"cpc":           &kw.CPC,
			"competition":   &kw.Competition,
		} {
			if *dst, err = parseCell(cell(name)); err != nil {
				return nil, fmt.Errorf("csv line %d: %s: %w", line, name, err)
			}
		}
		if s := cell("score"); s != "" {
			score, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: score: %w", line, err)
			}
			kw.Score = &score
		}
		keywords = append(keywords, kw)
	}
	return keywords, nil
}

func parseCell(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
