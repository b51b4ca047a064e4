package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := `term,search_volume,cpc,competition,intent,score,extra
tenis corrida,1200,1.5,0.3,commercial,0.8,x
"tenis, trail",,,,,,
`
	kws, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, kws, 2)

	assert.Equal(t, "tenis corrida", kws[0].Term)
	assert.Equal(t, 1200.0, kws[0].Volume)
	assert.Equal(t, 1.5, kws[0].CPC)
	assert.Equal(t, 0.3, kws[0].Competition)
	assert.Equal(t, "commercial", kws[0].Intent)
	require.NotNil(t, kws[0].Score)
	assert.Equal(t, 0.8, *kws[0].Score)

	assert.Equal(t, "tenis, trail", kws[1].Term)
	assert.Zero(t, kws[1].Volume)
	assert.Nil(t, kws[1].Score)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("keyword,volume\nfoo,1\n"))
	assert.ErrorIs(t, err, ErrMissingTermColumn)

	_, err = ReadCSV(strings.NewReader("term,search_volume\nfoo,lots\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadJSON(t *testing.T) {
	input := `["tenis corrida", {"term": "tenis trail", "search_volume": 800, "cpc": 0.9, "score": 0.5}]`

	kws, err := ReadJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, kws, 2)

	assert.Equal(t, "tenis corrida", kws[0].Term)
	assert.Zero(t, kws[0].Volume)
	assert.Equal(t, "tenis trail", kws[1].Term)
	assert.Equal(t, 800.0, kws[1].Volume)
	require.NotNil(t, kws[1].Score)
	assert.Equal(t, 0.5, *kws[1].Score)

	_, err = ReadJSON(strings.NewReader(`{"term": "not an array"}`))
	assert.Error(t, err)

	_, err = ReadJSON(strings.NewReader(`[42]`))
	assert.Error(t, err)
}

func TestReadKeywordsFileReadsExports(t *testing.T) {
	run := sampleRun()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, run.Clusters[0].Keywords))

	path := filepath.Join(t.TempDir(), "kws.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	kws, err := ReadKeywordsFile(path)
	require.NoError(t, err)
	require.Len(t, kws, 2)
	assert.Equal(t, "tenis corrida", kws[0].Term)
	assert.Equal(t, 1200.0, kws[0].Volume)
	assert.Equal(t, "commercial", kws[0].Intent)
	// Cluster assignment columns are not read back
	assert.False(t, kws[0].IsAssigned())

	_, err = ReadKeywordsFile(filepath.Join(t.TempDir(), "kws.xlsx"))
	assert.Error(t, err)

	other := filepath.Join(t.TempDir(), "kws.txt")
	require.NoError(t, os.WriteFile(other, []byte("tenis"), 0o600))
	_, err = ReadKeywordsFile(other)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
