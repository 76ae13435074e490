// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

/*
Package cache provides a thread-safe LRU cache with TTL support.

The result store uses it to remember public share links. Creating a share
on a WebDAV server is an OCS round trip per image, and presigning an S3 URL
costs a request signature, while the same images are requested over and
over by the experiment viewer.

# Usage

	links := cache.NewLRU[string](10000, time.Hour)
	links.Add("lse-alice/e1/images/a.png", "https://cloud.example.com/s/abc")
	if link, ok := links.Get("lse-alice/e1/images/a.png"); ok {
	    return link
	}
	links.RemovePrefix("lse-alice/e1/")

# Semantics

  - Get, Add and Remove are O(1); the least recently used entry is evicted
    once capacity is reached
  - Entries expire TTL after they were added and are dropped lazily on Get
  - RemovePrefix walks every entry and is meant for rare invalidations
*/
package cache
