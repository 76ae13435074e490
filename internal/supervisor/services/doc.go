// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package services adapts the process components to suture.Service.

  - HTTPServerService wraps *http.Server: ListenAndServe on start,
    Shutdown with a timeout when the context ends.
  - RouterService wraps the job router. The router cannot be restarted, so
    an unexpected stop terminates the supervisor tree.
  - ServiceFunc turns a blocking func(ctx) error into a named service; the
    worker introspection responder runs this way.

Every service implements fmt.Stringer so suture logs it by name.
*/
package services
