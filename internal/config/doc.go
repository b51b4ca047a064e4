// Package config loads semcluster settings.
//
// Precedence, lowest first: built-in defaults, the YAML file named by
// SEMCLUSTER_CONFIG, then environment variables. LoadEnv can populate the
// environment from the nearest .env file beforehand.
//
// Example file:
//
//	db_path: /var/lib/semcluster/history.db
//	embedding:
//	  provider: jina
//	clustering:
//	  cluster_size: 6
//	  min_similarity: 0.6
//	  funnel_stages: [topo, meio, fundo]
package config
