package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/workflow"
)

func TestListenTargetsFindsNestedListenTasks(t *testing.T) {
	inner := workflow.ListenTarget{Protocol: workflow.ListenHTTPSchema, BindAddress: ":8180", SchemaPath: "inner.yaml"}
	outer := workflow.ListenTarget{Protocol: workflow.ListenRPC, BindAddress: ":8282", ServiceName: "Orders"}

	doc := workflow.Document{
		Do: []workflow.Entry{
			{Name: "top", Task: &workflow.ListenTask{To: outer}},
			{Name: "wrapper", Task: &workflow.TryTask{
				Try: []workflow.Entry{
					{Name: "nested", Task: &workflow.DoTask{
						Do: []workflow.Entry{
							{Name: "inner-listen", Task: &workflow.ListenTask{To: inner}},
						},
					}},
				},
			}},
		},
	}

	targets := listenTargets(doc)
	require.Len(t, targets, 2)
	require.Contains(t, targets, outer)
	require.Contains(t, targets, inner)
}

func TestListenTargetsEmptyDocumentReturnsNil(t *testing.T) {
	require.Empty(t, listenTargets(workflow.Document{}))
}
