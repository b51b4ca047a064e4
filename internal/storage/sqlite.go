package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/dshills/semcluster/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidStatus is returned for an unknown cluster status
	ErrInvalidStatus = errors.New("invalid cluster status")
	// ErrInvalidRun is returned when a run cannot be stored
	ErrInvalidRun = errors.New("invalid run")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Run operations

// SaveRun stores a run with its clusters, members and discards atomically
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *types.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.saveRunWithQuerier(ctx, tx, run); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// saveRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) saveRunWithQuerier(ctx context.Context, q querier, run *types.RunResult) error {
	if run == nil || run.ExecutionID == "" {
		return fmt.Errorf("%w: missing execution id", ErrInvalidRun)
	}

	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE execution_id = ?", run.ExecutionID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("run %s: %w", run.ExecutionID, ErrAlreadyExists)
	}
	if err != sql.ErrNoRows {
		return err
	}

	warnings, err := encodeWarnings(run.Warnings)
	if err != nil {
		return err
	}
	heatmap, err := encodeHeatmap(run.Report.Heatmap)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO runs (execution_id, category, domain, model, parallel, cluster_count,
		                  discard_count, elapsed_ns, warnings, heatmap, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ExecutionID, run.Category, run.Domain, run.Model, run.Parallel,
		len(run.Clusters), len(run.Discarded), int64(run.Elapsed),
		warnings, heatmap, nullString(run.Error), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, c := range run.Clusters {
		if err := insertCluster(ctx, q, run.ExecutionID, i, c); err != nil {
			return err
		}
	}

	for i, d := range run.Discarded {
		_, err := q.ExecContext(ctx, `
			INSERT INTO discards (execution_id, ordinal, head_term, reason)
			VALUES (?, ?, ?, ?)
		`, run.ExecutionID, i, d.HeadTerm, string(d.Reason))
		if err != nil {
			return fmt.Errorf("failed to insert discard: %w", err)
		}
	}

	return nil
}

func insertCluster(ctx context.Context, q querier, executionID string, ordinal int, c *types.Cluster) error {
	status := c.Status
	if status == "" {
		status = types.ClusterPending
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO clusters (id, execution_id, ordinal, head_index, mean_similarity,
		                      funnel_stage, category, domain, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, executionID, ordinal, c.HeadIndex, nullFloat(c.MeanSimilarity),
		c.FunnelStage, c.Category, c.Domain, string(status), c.CreatedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert cluster %s: %w", c.ID, err)
	}

	for i, kw := range c.Keywords {
		var score, position interface{}
		if kw.Score != nil {
			score = nullFloat(*kw.Score)
		}
		if kw.Position != nil {
			position = *kw.Position
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO cluster_members (cluster_id, member_index, term, search_volume, cpc,
			                             competition, intent, score, funnel_stage, position, article_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, i, kw.Term, kw.Volume, kw.CPC, kw.Competition, kw.Intent,
			score, kw.FunnelStage, position, kw.ArticleName)
		if err != nil {
			return fmt.Errorf("failed to insert member %q: %w", kw.Term, err)
		}
	}
	return nil
}

// GetRun loads a run with its clusters and discards
func (s *SQLiteStorage) GetRun(ctx context.Context, executionID string) (*types.RunResult, error) {
	return s.getRunWithQuerier(ctx, s.querier(), executionID)
}

// getRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, executionID string) (*types.RunResult, error) {
	var (
		run              types.RunResult
		elapsed          int64
		warnings, hm, rr sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT execution_id, category, domain, model, parallel, elapsed_ns, warnings, heatmap, error
		FROM runs
		WHERE execution_id = ?
	`, executionID).Scan(
		&run.ExecutionID, &run.Category, &run.Domain, &run.Model, &run.Parallel,
		&elapsed, &warnings, &hm, &rr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	result := types.NewRunResult(run.ExecutionID, run.Category, run.Domain, run.Model, run.Parallel)
	result.Elapsed = time.Duration(elapsed)
	result.Error = rr.String
	if result.Warnings, err = decodeWarnings(warnings); err != nil {
		return nil, err
	}
	if result.Report.Heatmap, err = decodeHeatmap(hm); err != nil {
		return nil, err
	}

	clusters, err := listClusters(ctx, q, "c.execution_id = ?", executionID)
	if err != nil {
		return nil, err
	}
	result.Clusters = append(result.Clusters, clusters...)

	rows, err := q.QueryContext(ctx, `
		SELECT head_term, reason FROM discards
		WHERE execution_id = ?
		ORDER BY ordinal
	`, executionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var d types.DiscardRecord
		var reason string
		if err := rows.Scan(&d.HeadTerm, &reason); err != nil {
			return nil, err
		}
		d.Reason = types.DiscardReason(reason)
		result.Discarded = append(result.Discarded, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.Finalize()
	return result, nil
}

// listClusters loads clusters matching where, with members, in ordinal order
func listClusters(ctx context.Context, q querier, where string, arg interface{}) ([]*types.Cluster, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.head_index, c.mean_similarity, c.funnel_stage, c.category, c.domain,
		       c.status, c.created_at,
		       m.term, m.search_volume, m.cpc, m.competition, m.intent, m.score,
		       m.funnel_stage, m.position, m.article_name
		FROM clusters c
		JOIN cluster_members m ON m.cluster_id = c.id
		WHERE `+where+`
		ORDER BY c.ordinal, m.member_index
	`, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var clusters []*types.Cluster
	var current *types.Cluster

	for rows.Next() {
		var (
			c                            types.Cluster
			mean                         sql.NullFloat64
			stage, status                sql.NullString
			kw                           types.Keyword
			cpc, competition, score      sql.NullFloat64
			intent, kwStage, articleName sql.NullString
			position                     sql.NullInt64
		)
		if err := rows.Scan(
			&c.ID, &c.HeadIndex, &mean, &stage, &c.Category, &c.Domain, &status, &c.CreatedAt,
			&kw.Term, &kw.Volume, &cpc, &competition, &intent, &score,
			&kwStage, &position, &articleName,
		); err != nil {
			return nil, err
		}

		if current == nil || current.ID != c.ID {
			c.MeanSimilarity = math.NaN()
			if mean.Valid {
				c.MeanSimilarity = mean.Float64
			}
			c.FunnelStage = stage.String
			c.Status = types.ClusterStatus(status.String)
			c.Keywords = make([]*types.Keyword, 0)
			current = &c
			clusters = append(clusters, current)
		}

		kw.CPC = cpc.Float64
		kw.Competition = competition.Float64
		kw.Intent = intent.String
		kw.FunnelStage = kwStage.String
		kw.ArticleName = articleName.String
		if score.Valid {
			v := score.Float64
			kw.Score = &v
		}
		if position.Valid {
			p := int(position.Int64)
			kw.Position = &p
		}
		current.Keywords = append(current.Keywords, &kw)
	}

	return clusters, rows.Err()
}

// ListRuns returns run summaries, newest first
func (s *SQLiteStorage) ListRuns(ctx context.Context, filter RunFilter) ([]*RunSummary, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), filter)
}

// listRunsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, filter RunFilter) ([]*RunSummary, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Domain != "" {
		conditions = append(conditions, "domain = ?")
		args = append(args, filter.Domain)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT execution_id, category, domain, model, parallel, cluster_count,
		       discard_count, elapsed_ns, error, created_at
		FROM runs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*RunSummary
	for rows.Next() {
		var r RunSummary
		var elapsed int64
		var runErr sql.NullString
		if err := rows.Scan(
			&r.ExecutionID, &r.Category, &r.Domain, &r.Model, &r.Parallel, &r.ClusterCount,
			&r.DiscardCount, &elapsed, &runErr, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Elapsed = time.Duration(elapsed)
		r.Error = runErr.String
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run; clusters, members, discards and exports cascade
func (s *SQLiteStorage) DeleteRun(ctx context.Context, executionID string) error {
	return s.deleteRunWithQuerier(ctx, s.querier(), executionID)
}

// deleteRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteRunWithQuerier(ctx context.Context, q querier, executionID string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM runs WHERE execution_id = ?", executionID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return requireAffected(result)
}

// Cluster operations

// GetCluster loads one cluster with its members
func (s *SQLiteStorage) GetCluster(ctx context.Context, clusterID string) (*types.Cluster, error) {
	return s.getClusterWithQuerier(ctx, s.querier(), clusterID)
}

// getClusterWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getClusterWithQuerier(ctx context.Context, q querier, clusterID string) (*types.Cluster, error) {
	clusters, err := listClusters(ctx, q, "c.id = ?", clusterID)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, ErrNotFound
	}
	return clusters[0], nil
}

// UpdateClusterStatus moves a cluster through its content lifecycle
func (s *SQLiteStorage) UpdateClusterStatus(ctx context.Context, clusterID string, status types.ClusterStatus) error {
	return s.updateClusterStatusWithQuerier(ctx, s.querier(), clusterID, status)
}

// updateClusterStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateClusterStatusWithQuerier(ctx context.Context, q querier, clusterID string, status types.ClusterStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	result, err := q.ExecContext(ctx,
		"UPDATE clusters SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), clusterID)
	if err != nil {
		return fmt.Errorf("failed to update cluster status: %w", err)
	}
	return requireAffected(result)
}

// Export operations

// RecordExport stores an export path for a run
func (s *SQLiteStorage) RecordExport(ctx context.Context, export *Export) error {
	return s.recordExportWithQuerier(ctx, s.querier(), export)
}

// recordExportWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) recordExportWithQuerier(ctx context.Context, q querier, export *Export) error {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, `
		INSERT INTO exports (execution_id, path, format, created_at)
		VALUES (?, ?, ?, ?)
	`, export.ExecutionID, export.Path, export.Format, now)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	export.ID = id
	export.CreatedAt = now
	return nil
}

// ListExports returns the exports of a run, oldest first
func (s *SQLiteStorage) ListExports(ctx context.Context, executionID string) ([]*Export, error) {
	return s.listExportsWithQuerier(ctx, s.querier(), executionID)
}

// listExportsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listExportsWithQuerier(ctx context.Context, q querier, executionID string) ([]*Export, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, execution_id, path, format, created_at
		FROM exports
		WHERE execution_id = ?
		ORDER BY id
	`, executionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var exports []*Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.ExecutionID, &e.Path, &e.Format, &e.CreatedAt); err != nil {
			return nil, err
		}
		exports = append(exports, &e)
	}
	return exports, rows.Err()
}

// Status operations

// GetStatus retrieves counts and health for the run history
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// getStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		ClustersByStatus: make(map[types.ClusterStatus]int),
		BuildMode:        BuildMode,
	}

	counts := []struct {
		table string
		dest  *int
	}{
		{"runs", &status.RunsCount},
		{"clusters", &status.ClustersCount},
		{"discards", &status.DiscardsCount},
		{"exports", &status.ExportsCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	rows, err := q.QueryContext(ctx, "SELECT status, COUNT(*) FROM clusters GROUP BY status")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.ClustersByStatus[types.ClusterStatus(st)] = n
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// MAX() drops the column type, so read the newest row instead
	var lastRun sql.NullTime
	err = q.QueryRowContext(ctx, "SELECT created_at FROM runs ORDER BY created_at DESC LIMIT 1").Scan(&lastRun)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if lastRun.Valid {
		status.LastRunAt = lastRun.Time
	}

	version, err := currentVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	// Calculate database size
	var pageCount, pageSize int
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		SchemaCurrent:      status.SchemaVersion == CurrentSchemaVersion,
	}

	return status, nil
}

// Helpers

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullFloat stores non-finite values as NULL
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

func encodeWarnings(warnings []string) (sql.NullString, error) {
	if len(warnings) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode warnings: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeWarnings(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var warnings []string
	if err := json.Unmarshal([]byte(raw.String), &warnings); err != nil {
		return nil, fmt.Errorf("failed to decode warnings: %w", err)
	}
	return warnings, nil
}

// encodeHeatmap writes non-finite cells as JSON null
func encodeHeatmap(heatmap [][]float64) (sql.NullString, error) {
	if heatmap == nil {
		return sql.NullString{}, nil
	}
	cells := make([][]*float64, len(heatmap))
	for i, row := range heatmap {
		cells[i] = make([]*float64, len(row))
		for j := range row {
			if v := row[j]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				cells[i][j] = &v
			}
		}
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode heatmap: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeHeatmap(raw sql.NullString) ([][]float64, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var cells [][]*float64
	if err := json.Unmarshal([]byte(raw.String), &cells); err != nil {
		return nil, fmt.Errorf("failed to decode heatmap: %w", err)
	}
	heatmap := make([][]float64, len(cells))
	for i, row := range cells {
		heatmap[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				heatmap[i][j] = math.NaN()
			} else {
				heatmap[i][j] = *v
			}
		}
	}
	return heatmap, nil
}

// Transaction methods

func (t *sqliteTx) SaveRun(ctx context.Context, run *types.RunResult) error {
	return t.storage.saveRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) GetRun(ctx context.Context, executionID string) (*types.RunResult, error) {
	return t.storage.getRunWithQuerier(ctx, t.querier(), executionID)
}

func (t *sqliteTx) ListRuns(ctx context.Context, filter RunFilter) ([]*RunSummary, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier(), filter)
}

func (t *sqliteTx) DeleteRun(ctx context.Context, executionID string) error {
	return t.storage.deleteRunWithQuerier(ctx, t.querier(), executionID)
}

func (t *sqliteTx) GetCluster(ctx context.Context, clusterID string) (*types.Cluster, error) {
	return t.storage.getClusterWithQuerier(ctx, t.querier(), clusterID)
}

func (t *sqliteTx) UpdateClusterStatus(ctx context.Context, clusterID string, status types.ClusterStatus) error {
	return t.storage.updateClusterStatusWithQuerier(ctx, t.querier(), clusterID, status)
}

func (t *sqliteTx) RecordExport(ctx context.Context, export *Export) error {
	return t.storage.recordExportWithQuerier(ctx, t.querier(), export)
}

func (t *sqliteTx) ListExports(ctx context.Context, executionID string) ([]*Export, error) {
	return t.storage.listExportsWithQuerier(ctx, t.querier(), executionID)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
