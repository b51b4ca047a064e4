package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dshills/semcluster/internal/clusterer"
	"github.com/dshills/semcluster/internal/config"
	"github.com/dshills/semcluster/internal/embedder"
	"github.com/dshills/semcluster/internal/exporter"
	"github.com/dshills/semcluster/internal/metrics"
	"github.com/dshills/semcluster/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "semcluster"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	clusterer *clusterer.Clusterizer
	exporter  *exporter.Exporter
	logger    zerolog.Logger
}

// NewServer builds storage, embedder, clusterer and exporter from cfg.
// When recorder is non-nil it receives every run and the cache counters.
func NewServer(cfg *config.Config, recorder *metrics.Recorder) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	opts := []clusterer.Option{clusterer.WithEmbedder(emb)}
	if recorder != nil {
		opts = append(opts, clusterer.WithMonitor(recorder.Observe))
	}
	clust, err := clusterer.New(cfg.Clustering, opts...)
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize clusterer: %w", err)
	}

	exp, err := exporter.New(cfg.ExportDir)
	if err != nil {
		_ = clust.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize exporter: %w", err)
	}

	if recorder != nil {
		if err := errors.Join(recorder.RegisterCache(clust.CacheStats), recorder.RegisterHistory(store)); err != nil {
			_ = clust.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return newServer(store, clust, exp), nil
}

// newServer wires already-built dependencies and registers the tools
func newServer(store storage.Storage, clust *clusterer.Clusterizer, exp *exporter.Exporter) *Server {
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		storage:   store,
		clusterer: clust,
		exporter:  exp,
		logger:    log.Logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until stdin closes or ctx is cancelled.
// The caller closes the server afterwards.
func (s *Server) Serve(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the clusterer and the store
func (s *Server) Close() error {
	return errors.Join(s.clusterer.Close(), s.storage.Close())
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(clusterKeywordsTool(), s.handleClusterKeywords)
	s.mcp.AddTool(getRunTool(), s.handleGetRun)
	s.mcp.AddTool(listRunsTool(), s.handleListRuns)
	s.mcp.AddTool(exportRunTool(), s.handleExportRun)
	s.mcp.AddTool(updateClusterStatusTool(), s.handleUpdateClusterStatus)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
