package engine

import "errors"

// ErrWorkflowNotFound is returned by status-query-capable adapters when the
// requested run ID is unknown.
var ErrWorkflowNotFound = errors.New("engine: workflow not found")
