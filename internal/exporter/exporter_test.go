package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcluster/pkg/types"
)

var fixedTime = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

func newTestExporter(t *testing.T) (*Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	e, err := New(dir, WithClock(func() time.Time { return fixedTime }), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return e, dir
}

func sampleRun() *types.RunResult {
	r := types.NewRunResult("exec-1", "tenis", "example.com", "m", false)
	kws := []*types.Keyword{
		{Term: "tenis corrida", Volume: 1200, CPC: 1.5, Intent: "commercial"},
		{Term: "tenis trail", Volume: 800, CPC: 0.9},
	}
	for i, kw := range kws {
		kw.Assign(types.FunnelStageFor(types.DefaultFunnelStages, i), i)
	}
	r.Clusters = append(r.Clusters, &types.Cluster{ID: "c-1", Keywords: kws, Status: types.ClusterPending})
	r.Finalize()
	return r
}

func TestExportRun(t *testing.T) {
	e, dir := newTestExporter(t)

	paths, err := e.ExportRun(context.Background(), sampleRun(), "acme", "esportes")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, filepath.Join(dir, "acme", "esportes", "tenis-20240305T103000Z.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "acme", "esportes", "tenis-20240305T103000Z.json"), paths[1])

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"c-1", "tenis corrida", "1200", "1.5", "0", "commercial", "", "awareness", "0", "Artigo1"}, records[1])

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	var payload struct {
		Client   string           `json:"client"`
		Category string           `json:"category"`
		Keywords []map[string]any `json:"keywords"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "acme", payload.Client)
	assert.Equal(t, "tenis", payload.Category)
	require.Len(t, payload.Keywords, 2)
	assert.Equal(t, "c-1", payload.Keywords[1]["cluster_id"])
	assert.Equal(t, "Artigo2", payload.Keywords[1]["article_name"])
}

func TestExportSingleFormat(t *testing.T) {
	e, _ := newTestExporter(t)

	paths, err := e.Export(context.Background(), Request{
		Client: "acme", Niche: "esportes", Category: "tenis",
		Keywords: []*types.Keyword{{Term: "tenis", Volume: 1}},
	}, FormatJSON)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, ".json", filepath.Ext(paths[0]))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(paths[0]), ".export-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExportValidation(t *testing.T) {
	e, _ := newTestExporter(t)
	kws := []*types.Keyword{{Term: "a"}}

	_, err := e.Export(context.Background(), Request{Client: "../etc", Niche: "n", Category: "c", Keywords: kws})
	assert.ErrorIs(t, err, ErrInvalidLabel)

	_, err = e.Export(context.Background(), Request{Client: "a", Niche: "n/x", Category: "c", Keywords: kws})
	assert.ErrorIs(t, err, ErrInvalidLabel)

	_, err = e.Export(context.Background(), Request{Client: "a", Niche: "n", Category: "c"})
	assert.ErrorIs(t, err, ErrNoKeywords)

	_, err = e.Export(context.Background(), Request{Client: "a", Niche: "n", Category: "c", Keywords: kws}, Format("xlsx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
}

func TestWriteCSV(t *testing.T) {
	score := 0.25
	var buf bytes.Buffer
	err := WriteCSV(&buf, []*types.Keyword{{Term: `tenis "pro", azul`, Volume: 10, Score: &score}})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `tenis "pro", azul`, records[1][1])
	assert.Equal(t, "0.25", records[1][6])
	assert.Equal(t, "", records[1][8])
}
