// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package jobqueue carries reduction and clustering jobs from the API to the
workers and reports their state back.

Jobs travel on a NATS JetStream work-queue stream (LSE_JOBS, subjects
jobs.reduction and jobs.cluster) through watermill. The task id is the
watermill message UUID and the Nats-Msg-Id header, so republishing the same
job inside the duplicate window is a no-op.

Task state lives in a ResultBackend keyed by task id:

	pending  → no record (never started, or expired)
	started  → a worker holds a concurrency slot for the job
	success  → result_id names the committed result directory
	failure  → error holds the reason

Pending counts come from introspection rather than from the stream: every
worker answers a core NATS request on the inspect subject with the tasks it
has reserved and the tasks it is running.
*/
package jobqueue
