// Package temporal implements the workflow engine adapter backed by
// Temporal (https://temporal.io). It satisfies the generic engine.Engine
// interface so the dispatch kernel can orchestrate durable workflows
// without importing the Temporal SDK directly.
//
// # Why Temporal?
//
// Temporal provides durable execution for long-running workflow instances.
// When a workflow runs a For loop over a large collection, waits on a
// Listen task for hours, or calls Run.workflow recursively, Temporal
// ensures the execution state survives process restarts, network
// failures, and crashes: the dispatch kernel replays from event history,
// producing deterministic re-execution (see the replay package for the
// event-log-driven recovery path used when this adapter is swapped for
// the in-memory one).
//
// # Constructing an Engine
//
//	eng, err := temporal.New(temporal.Options{
//	    ClientOptions: &client.Options{
//	        HostPort:  "temporal:7233",
//	        Namespace: "default",
//	    },
//	    WorkerOptions: temporal.WorkerOptions{
//	        TaskQueue: "durableflow.default",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
// # Worker vs Client Mode
//
//   - Worker mode: polls task queues and executes workflows locally. Use
//     this in dispatch-kernel host processes.
//   - Client mode: submits workflows without local execution. Use this in
//     API gateways that start runs but don't process them.
//
// Both modes use the same Options; the difference is whether the dispatch
// kernel's workflow and executor activities are registered.
//
// # Workflow Determinism
//
// Temporal workflows must be deterministic: given the same inputs and
// event history, they must retrace the same execution. This package
// exposes only deterministic operations on WorkflowContext:
//
//   - Now() returns workflow time, not wall clock
//   - ExecuteActivity/ExecuteActivityAsync schedule activities
//   - SignalChannel returns deterministic signal receivers
//   - NewTimer returns a deterministic timer future
//   - StartChildWorkflow starts nested workflows
//
// Executors (http, shell, and the other task-kind side effects) run inside
// activities, which are not constrained by determinism.
//
// # OpenTelemetry Integration
//
// The engine automatically installs OTEL interceptors on the Temporal
// client and worker, propagating trace context through workflow and
// activity boundaries.
//
// # Query Handlers
//
// Workflows can expose query handlers for external introspection;
// QueryRunStatus uses Temporal's DescribeWorkflowExecution instead, since
// run status classification is a fixed four-state enum shared with the
// in-memory adapter rather than a workflow-defined query.
package temporal
