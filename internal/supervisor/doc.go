// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package supervisor runs the long-lived parts of the service under a suture v4
supervisor tree.

# Overview

	RootSupervisor ("latentspace")
	├── WorkerSupervisor ("worker-layer")
	│   ├── RouterService       job consumption through the watermill router
	│   └── ServiceFunc         introspection responder for pending counts
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

The worker layer is empty when the process only serves the API, and the API
layer is empty in a dedicated worker process. A crashing introspection
responder is restarted without touching the HTTP server.

# Failure Handling

Each layer restarts its services with the tree's failure threshold, decay
and backoff. The watermill router can run only once, so RouterService ends
the whole tree when its router stops unexpectedly and the process exits for
its orchestrator to restart.

# Logging

Supervisor events are logged through sutureslog on the slog logger passed
to NewSupervisorTree, normally logging.NewSlogLogger so they share the
zerolog output of the rest of the process.

# Shutdown

Canceling the context passed to Serve stops every service. Services that
do not stop within ShutdownTimeout are reported by UnstoppedServiceReport.
*/
package supervisor
