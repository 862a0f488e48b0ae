package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/runlog"
	"github.com/durableflow/engine/runlog/inmem"
)

func TestAppendAssignsDenseSequence(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := &runlog.Event{InstanceID: "inst-1", Type: runlog.TaskCompleted}
		require.NoError(t, s.Append(ctx, e))
		require.EqualValues(t, i+1, e.Sequence)
	}

	all, err := s.All(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.EqualValues(t, 1, all[0].Sequence)
	require.EqualValues(t, 3, all[2].Sequence)
}

func TestListPaginatesByCursor(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, &runlog.Event{InstanceID: "inst-1", Type: runlog.TaskEntered}))
	}

	page, err := s.List(ctx, "inst-1", "", 2)
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	require.NotEmpty(t, page.NextCursor)

	page2, err := s.List(ctx, "inst-1", page.NextCursor, 10)
	require.NoError(t, err)
	require.Len(t, page2.Events, 3)
	require.Empty(t, page2.NextCursor)
}

func TestListRequiresInstanceID(t *testing.T) {
	s := inmem.New()
	_, err := s.List(context.Background(), "", "", 10)
	require.Error(t, err)
}
