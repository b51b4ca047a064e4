package exporter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dshills/semcluster/pkg/types"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Errors
var (
	ErrInvalidLabel      = errors.New("invalid export label")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoKeywords        = errors.New("nothing to export")
)

// csvHeader is the column order of CSV exports
var csvHeader = []string{
	"cluster_id", "term", "search_volume", "cpc", "competition", "intent",
	"score", "funnel_stage", "cluster_position", "article_name",
}

const timestampLayout = "20060102T150405Z"

// Request describes one export
type Request struct {
	Client   string
	Niche    string
	Category string
	Keywords []*types.Keyword
}

// row is a keyword with the id of the cluster it landed in, if known
type row struct {
	clusterID string
	kw        *types.Keyword
}

// Exporter writes keyword lists under <baseDir>/<client>/<niche>/
type Exporter struct {
	baseDir string
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures an Exporter
type Option func(*Exporter)

// WithClock overrides the timestamp source used in file names
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLogger sets the exporter logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// New creates an exporter rooted at baseDir
func New(baseDir string, opts ...Option) (*Exporter, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: empty base directory", ErrInvalidLabel)
	}
	e := &Exporter{
		baseDir: baseDir,
		now:     time.Now,
		logger:  log.Logger.With().Str("component", "exporter").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ParseFormat maps a name such as "csv" to a Format
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatCSV, FormatJSON:
		return Format(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Export writes req.Keywords in each format and returns the created paths
func (e *Exporter) Export(ctx context.Context, req Request, formats ...Format) ([]string, error) {
	rows := make([]row, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if kw != nil {
			rows = append(rows, row{kw: kw})
		}
	}
	return e.export(ctx, req.Client, req.Niche, req.Category, rows, formats)
}

// ExportRun writes the members of every accepted cluster in result
func (e *Exporter) ExportRun(ctx context.Context, result *types.RunResult, client, niche string, formats ...Format) ([]string, error) {
	if result == nil {
		return nil, ErrNoKeywords
	}
	var rows []row
	for _, c := range result.Clusters {
		for _, kw := range c.Keywords {
			rows = append(rows, row{clusterID: c.ID, kw: kw})
		}
	}
	return e.export(ctx, client, niche, result.Category, rows, formats)
}

func (e *Exporter) export(ctx context.Context, client, niche, category string, rows []row, formats []Format) ([]string, error) {
	for field, label := range map[string]string{"client": client, "niche": niche, "category": category} {
		if !types.ValidateLabel(label) {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidLabel, field, label)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoKeywords
	}
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}

	dir := filepath.Join(e.baseDir, client, niche)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	stamp := e.now().UTC().Format(timestampLayout)
	paths := make([]string, 0, len(formats))

	for _, format := range formats {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		var write func(io.Writer) error
		switch format {
		case FormatCSV:
			write = func(w io.Writer) error { return writeCSV(w, rows) }
		case FormatJSON:
			write = func(w io.Writer) error {
				return writeJSON(w, client, niche, category, stamp, rows)
			}
		default:
			return paths, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", category, stamp, format))
		if err := writeFileAtomic(path, write); err != nil {
			return paths, fmt.Errorf("write %s: %w", format, err)
		}
		paths = append(paths, path)

		e.logger.Info().Str("path", path).Int("keywords", len(rows)).Msg("export written")
	}

	return paths, nil
}

// WriteCSV writes keywords as CSV with a header row
func WriteCSV(w io.Writer, keywords []*types.Keyword) error {
	rows := make([]row, len(keywords))
	for i, kw := range keywords {
		rows[i] = row{kw: kw}
	}
	return writeCSV(w, rows)
}

func writeCSV(w io.Writer, rows []row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range rows {
		kw := r.kw
		score, position := "", ""
		if kw.Score != nil {
			score = formatFloat(*kw.Score)
		}
		if kw.Position != nil {
			position = strconv.Itoa(*kw.Position)
		}
		record := []string{
			r.clusterID,
			kw.Term,
			formatFloat(kw.Volume),
			formatFloat(kw.CPC),
			formatFloat(kw.Competition),
			kw.Intent,
			score,
			kw.FunnelStage,
			position,
			kw.ArticleName,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, client, niche, category, stamp string, rows []row) error {
	keywords := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := types.KeywordToMap(r.kw)
		if r.clusterID != "" {
			m["cluster_id"] = r.clusterID
		}
		keywords[i] = m
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"client":      client,
		"niche":       niche,
		"category":    category,
		"exported_at": stamp,
		"keywords":    keywords,
	})
}

// writeFileAtomic writes through a temp file in the target directory
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
