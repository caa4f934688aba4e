// Package main is the webcrawler command.
//
// webcrawler crawls a set of start pages in parallel, following links up to
// a configured depth, and reports the most popular words it saw.
//
//   - crawl runs one crawl from the command line and writes the ranked words
//     to stdout, a local file or a gs:// object. Timing data from the
//     profiler follows the result unless output.profile_path is set.
//   - serve starts the HTTP service. POST /v1/crawls queues a run that a
//     fixed worker pool executes; GET /v1/crawls/{run_id} returns its status
//     and result. Finished runs are archived to Postgres when db.dsn is set,
//     uploaded to storage.gcs_bucket when set, and announced on
//     pubsub.topic_name when set.
//   - version prints build information.
//
// Configuration comes from a YAML/JSON/TOML file (--config, ./config.yaml or
// $XDG_CONFIG_HOME/webcrawler/config.yaml) overridden by CRAWLER_* environment
// variables, e.g. CRAWLER_CRAWLER_MAX_DEPTH=3 or CRAWLER_SERVER_PORT=9090.
//
// Run locally:
//
//	go run ./cmd/webcrawler crawl --depth 2 --popular-words 20 https://go.dev
//	go run ./cmd/webcrawler serve --config config.yaml
package main
