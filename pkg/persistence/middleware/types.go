// Package middleware wraps a ports.SnapshotStore with cross-cutting
// persistence behavior such as at-rest encryption and PII masking.
package middleware

import "github.com/tapestrylab/weft/pkg/ports"

// Middleware wraps a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore
