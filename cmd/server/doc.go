// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package main is the entry point for the Latentspace API server.

Latentspace runs dimensionality reduction and clustering jobs over
embedding experiments stored in a per-tenant hierarchy on WebDAV or S3,
and serves the results over a REST API.

# Application Architecture

	RootSupervisor ("latentspace")
	├── WorkerSupervisor ("worker-layer")      only with WORKER_EMBEDDED=true
	│   ├── job-router (watermill, jobs.reduction and jobs.cluster)
	│   └── worker-inspect (lse.workers.inspect responder)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi)

Component initialization order:

 1. Configuration: Koanf v2 with .env, config file and environment variables
 2. Logging: zerolog with JSON/console output modes
 3. Storage: WebDAV or S3 backend with retry and circuit breaker
 4. Queue: embedded or external NATS JetStream, job stream
 5. Task records: Redis, Badger or memory
 6. HTTP Server: chi router with CORS, rate limiting and tenant gate
 7. Supervisor Tree: Suture v4 process supervision

Jobs are executed by cmd/worker processes sharing the same NATS stream
and task record backend. Set WORKER_EMBEDDED=true to also run a worker in
this process, which RESULTS_BACKEND=memory requires.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:
  - Stops accepting new connections
  - Lets running jobs finish within SUPERVISOR_SHUTDOWN_TIMEOUT
  - Closes the publisher, task records and storage
  - Drains the NATS connection and stops the embedded server

# Example Usage

Single node with Nextcloud storage:

	export WEBDAV_URL=https://cloud.example.com/remote.php/dav/files/lse
	export WEBDAV_USER=lse
	export WEBDAV_PASSWORD=secret
	export NATS_EMBEDDED=true
	export RESULTS_BACKEND=badger
	export WORKER_EMBEDDED=true
	./latentspace-server

Distributed with MinIO and Redis:

	export STORAGE_TYPE=s3
	export S3_ENDPOINT=http://minio:9000
	export NATS_URL=nats://nats:4222
	export REDIS_URL=redis://redis:6379/0
	./latentspace-server
	./latentspace-worker   # on each worker node
*/
package main
