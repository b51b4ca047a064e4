// Package storage persists clustering runs in SQLite.
//
// # Database Schema
//
// Tables:
//   - runs: one row per GenerateClusters invocation, with warnings, error and heatmap
//   - clusters: accepted clusters with their lifecycle status
//   - cluster_members: member keywords in cluster order
//   - discards: failed cluster attempts and their reason codes
//   - exports: files written for a run (schema 1.1.0)
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.semcluster/history.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.SaveRun(ctx, result); err != nil {
//	    return err
//	}
//	run, err := db.GetRun(ctx, result.ExecutionID)
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpdateClusterStatus(ctx, id, types.ClusterGenerated)
//	_ = tx.RecordExport(ctx, &storage.Export{ExecutionID: runID, Path: p, Format: "csv"})
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Build Modes
//
// The default build uses modernc.org/sqlite. Build with -tags sqlite_cgo to
// use github.com/mattn/go-sqlite3 instead.
//
// # Migrations
//
// Schema versions are semver strings applied in order by ApplyMigrations.
// RollbackMigration undoes the most recent one.
package storage
