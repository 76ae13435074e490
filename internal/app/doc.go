// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package app assembles the process components from a loaded config.Config.
Both binaries share it:

	cmd/server   OpenStorage, OpenQueue, NewAPI, and NewWorker when
	             WORKER_EMBEDDED=true
	cmd/worker   OpenStorage, OpenQueue, NewWorker

Components are created in dependency order and closed in reverse by the
caller:

 1. Storage: the configured backend behind the retrying decorator,
    connected once per process
 2. Queue: the embedded NATS server (NATS_EMBEDDED=true) or an external
    URL, the core connection and the job stream
 3. Task records: Redis, Badger or memory (config.OpenResults)
 4. API: job publisher with its circuit breaker, introspector, queue
    client, result hierarchy with its share link cache, tenant gate and
    the chi router
 5. Worker: subscriber, poison publisher, router and the job worker

Long-running parts are returned as suture services for the supervisor tree.
*/
package app
