// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package config loads the service configuration with koanf.

Layers, lowest precedence first:

 1. Built-in defaults (structs provider)
 2. Optional YAML file: CONFIG_PATH, else config.yaml or config.yml in the
    working directory, else /etc/latentspace/config.yaml
 3. Environment variables, through an explicit name mapping

Before the environment layer is read, dotenv files are loaded with
godotenv: the file named by ENVIRONMENT_FILE, then .env. Variables already
set in the process environment are never overwritten by a dotenv file.

Environment variables (selection):

	HTTP_HOST, HTTP_PORT, CORS_ORIGINS, RATE_LIMIT_REQUESTS
	LINK_CACHE_SIZE, LINK_CACHE_TTL
	STORAGE_TYPE               webdav | s3 | memory
	STORAGE_RETRY_ATTEMPTS     bounded retries per storage call
	WEBDAV_URL, WEBDAV_USER, WEBDAV_PASSWORD
	S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET
	NATS_URL, NATS_EMBEDDED, NATS_STORE_DIR
	RESULTS_BACKEND            redis | badger | memory (embedded worker only)
	REDIS_URL, BADGER_DIR, RESULTS_EXPIRES
	WORKER_EMBEDDED, WORKER_CONCURRENCY
	LOG_LEVEL, LOG_FORMAT

Config.Validate runs after loading and reports the first invalid setting
by its environment variable name.
*/
package config
