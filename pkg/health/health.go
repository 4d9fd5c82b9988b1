// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package health

import "time"

// Metrics exposes the current state of a resource handle (warehouse
// connection or vector-search session) for monitoring and operator
// visibility. All fields are point-in-time snapshots safe to serialize to JSON.
type Metrics struct {
	Available     bool       `json:"available"`
	Connects      int64      `json:"connects"`
	FailureCount  int64      `json:"failure_count"`
	LastConnectAt *time.Time `json:"last_connect_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// Report aggregates handle metrics for the health endpoint.
type Report struct {
	Status      string  `json:"status" example:"ok" doc:"Health status"`
	State       string  `json:"state" doc:"Lifecycle state"`
	Warehouse   Metrics `json:"warehouse"`
	VectorStore Metrics `json:"vector_store"`
}
