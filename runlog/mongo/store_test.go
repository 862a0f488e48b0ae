package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/durableflow/engine/runlog"
)

func TestStoreAppendAssignsSequence(t *testing.T) {
	t.Parallel()

	counters := &fakeCounterCollection{}
	events := &fakeCollection{}
	s := &Store{events: events, counters: counters}

	e := &runlog.Event{
		InstanceID: "inst-1",
		Type:       runlog.EventType("task.completed"),
		Payload:    []byte(`{"ok":true}`),
	}
	require.NoError(t, s.Append(context.Background(), e))
	assert.EqualValues(t, 1, e.Sequence)
	require.Len(t, events.inserted, 1)
	assert.Equal(t, int64(1), events.inserted[0].Sequence)

	require.NoError(t, s.Append(context.Background(), e))
	assert.EqualValues(t, 2, e.Sequence)
}

func TestStoreAppendRejectsMissingInstanceID(t *testing.T) {
	t.Parallel()
	s := &Store{events: &fakeCollection{}, counters: &fakeCounterCollection{}}
	err := s.Append(context.Background(), &runlog.Event{})
	require.Error(t, err)
}

func TestStoreListNextCursor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		eventCount int
		limit      int
		wantNext   string
	}{
		{"fewer_than_limit", 2, 3, ""},
		{"exactly_limit_no_more", 3, 3, ""},
		{"more_than_limit_has_next", 4, 3, "3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			instanceID := "inst-1"
			events := &fakeCollection{docs: fakeEventDocuments(instanceID, tc.eventCount)}
			s := &Store{events: events, counters: &fakeCounterCollection{}}

			page, err := s.List(context.Background(), instanceID, "", tc.limit)
			require.NoError(t, err)
			assert.Len(t, page.Events, min(tc.eventCount, tc.limit))
			assert.Equal(t, tc.wantNext, page.NextCursor)

			if tc.wantNext == "" {
				return
			}
			next, err := s.List(context.Background(), instanceID, page.NextCursor, tc.limit)
			require.NoError(t, err)
			assert.Len(t, next.Events, tc.eventCount-tc.limit)
			assert.Empty(t, next.NextCursor)
		})
	}
}

func TestStoreAllPagesThroughEverything(t *testing.T) {
	t.Parallel()
	instanceID := "inst-1"
	events := &fakeCollection{docs: fakeEventDocuments(instanceID, 1200)}
	s := &Store{events: events, counters: &fakeCounterCollection{}}

	all, err := s.All(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Len(t, all, 1200)
}

func fakeEventDocuments(instanceID string, n int) []eventDocument {
	docs := make([]eventDocument, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, eventDocument{
			InstanceID: instanceID,
			Sequence:   int64(i),
			Type:       "task.completed",
			Payload:    []byte(`{}`),
			Timestamp:  time.Unix(int64(i), 0).UTC(),
		})
	}
	return docs
}

type fakeCounterCollection struct {
	seq int64
}

func (f *fakeCounterCollection) IncrementAndGet(context.Context, string) (int64, error) {
	f.seq++
	return f.seq, nil
}

type fakeCollection struct {
	inserted []eventDocument
	docs     []eventDocument
}

func (c *fakeCollection) InsertOne(_ context.Context, doc eventDocument) error {
	c.inserted = append(c.inserted, doc)
	return nil
}

func (c *fakeCollection) Find(_ context.Context, filter bson.M, limit int64) (cursor, error) {
	instanceID, _ := filter["instance_id"].(string)
	var after int64
	if seq, ok := filter["sequence"].(bson.M); ok {
		if gt, ok := seq["$gt"].(int64); ok {
			after = gt
		}
	}

	filtered := make([]eventDocument, 0, len(c.docs))
	for _, doc := range c.docs {
		if doc.InstanceID != instanceID {
			continue
		}
		if doc.Sequence <= after {
			continue
		}
		filtered = append(filtered, doc)
	}
	if limit > 0 && int64(len(filtered)) > limit {
		filtered = filtered[:limit]
	}
	return &fakeCursor{docs: filtered}, nil
}

func (c *fakeCollection) Indexes() indexView { return fakeIndexView{} }

type fakeIndexView struct{}

func (fakeIndexView) CreateOne(context.Context, bson.D) error { return nil }

type fakeCursor struct {
	docs []eventDocument
	pos  int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	p, ok := val.(*eventDocument)
	if !ok || c.pos == 0 || c.pos > len(c.docs) {
		return nil
	}
	*p = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error              { return nil }
func (c *fakeCursor) Close(context.Context) error { return nil }
