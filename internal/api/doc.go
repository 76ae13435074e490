// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package api exposes the experiment browser, the result store and the job
queue over HTTP using the Chi router.

Routes:

	GET    /status
	GET    /metrics
	GET    /tasks/{task_id}
	GET    /experiments
	GET    /experiments/{eid}
	DELETE /experiments/{eid}
	GET    /experiments/{eid}/labels
	GET    /experiments/{eid}/images/{name}
	GET    /experiments/{eid}/reductions
	POST   /experiments/{eid}/reductions
	GET    /experiments/{eid}/reductions/pending
	GET    /experiments/{eid}/reductions/{rid}
	DELETE /experiments/{eid}/reductions/{rid}
	GET    /experiments/{eid}/clusters
	POST   /experiments/{eid}/clusters
	GET    /experiments/{eid}/clusters/pending
	GET    /experiments/{eid}/clusters/{cid}
	DELETE /experiments/{eid}/clusters/{cid}

Everything under /experiments is tenant scoped. The tenant is read from the
user_id header by the gate middleware, which answers 401 before any handler
runs when the tenant namespace does not exist.

Error responses carry a single {"message": "..."} body. Status codes:

	404  missing experiment, result or file (most specific cause wins)
	401  unknown tenant
	422  malformed body, unknown algorithm, parameters out of range
	503  storage retries exhausted, broker unreachable
	500  anything else

Successful responses are the bare payload, not an envelope, so existing
clients of the experiment browser keep working.
*/
package api
