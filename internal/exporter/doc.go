// Package exporter writes clustered keywords to CSV and JSON files.
//
// Files are placed at <baseDir>/<client>/<niche>/<category>-<timestamp>.<ext>.
// Client, niche and category must pass the same label check as the
// clusterer's domain and category.
//
//	exp, _ := exporter.New("/var/lib/semcluster/exports")
//	paths, err := exp.ExportRun(ctx, result, "acme", "running", exporter.FormatCSV)
package exporter
