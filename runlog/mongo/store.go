// Package mongo implements runlog.Store on top of MongoDB, for process
// deployments that need the event log to survive a host restart (spec
// §4.6's storage-backend wiring).
//
// Grounded on the teacher's features/runlog/mongo/clients/mongo package:
// the same split between a thin collection/cursor/indexView interface
// (so Store's logic is unit-testable against fakes, exactly as the
// teacher's client_test.go does against fakeCollection/fakeCursor) and
// the real *mongo.Collection wiring behind it, adapted from v1 of the
// driver (go.mongodb.org/mongo-driver) to v2
// (go.mongodb.org/mongo-driver/v2). The teacher assigns no dense
// in-collection sequence number itself (it sorts by Mongo's own _id
// ObjectID order); this store needs runlog.Store's contract of a dense,
// monotone per-instance Sequence (I2), so it additionally maintains a
// per-instance counter document, incremented atomically via
// FindOneAndUpdate — the standard Mongo atomic-counter pattern — instead
// of relying on ObjectID ordering.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/durableflow/engine/runlog"
)

const (
	defaultEventsCollection   = "workflow_events"
	defaultCountersCollection = "workflow_event_counters"
	defaultTimeout            = 5 * time.Second
)

type eventDocument struct {
	InstanceID string    `bson:"instance_id"`
	Sequence   int64     `bson:"sequence"`
	Type       string    `bson:"type"`
	Payload    []byte    `bson:"payload"`
	Timestamp  time.Time `bson:"timestamp"`
}

type counterDocument struct {
	InstanceID string `bson:"_id"`
	Seq        int64  `bson:"seq"`
}

// collection is the narrow surface Store needs from a Mongo events
// collection, abstracted so unit tests can supply a fake instead of a
// live connection.
type collection interface {
	InsertOne(ctx context.Context, doc eventDocument) error
	Find(ctx context.Context, filter bson.M, limit int64) (cursor, error)
	Indexes() indexView
}

// counterCollection is the narrow surface Store needs for the
// per-instance sequence counter.
type counterCollection interface {
	IncrementAndGet(ctx context.Context, instanceID string) (int64, error)
}

// cursor abstracts *mongodriver.Cursor.
type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// indexView abstracts a collection's index management handle.
type indexView interface {
	CreateOne(ctx context.Context, keys bson.D) error
}

// Options configures a Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string // defaults to "workflow_events"
	Timeout    time.Duration
}

// Store implements runlog.Store.
type Store struct {
	events   collection
	counters counterCollection
	timeout  time.Duration
}

// New returns a Store backed by opts.Client, creating the supporting
// index before it returns.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("runlog/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("runlog/mongo: database is required")
	}
	name := opts.Collection
	if name == "" {
		name = defaultEventsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	events := mongoCollection{c: opts.Client.Database(opts.Database).Collection(name)}
	counters := mongoCounterCollection{c: opts.Client.Database(opts.Database).Collection(defaultCountersCollection)}

	s := &Store{events: events, counters: counters, timeout: timeout}

	ictx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := events.Indexes().CreateOne(ictx, bson.D{{Key: "instance_id", Value: 1}, {Key: "sequence", Value: 1}}); err != nil {
		return nil, fmt.Errorf("runlog/mongo: creating index: %w", err)
	}
	return s, nil
}

var _ runlog.Store = (*Store)(nil)

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Append implements runlog.Store.
func (s *Store) Append(ctx context.Context, e *runlog.Event) error {
	if e == nil {
		return errors.New("runlog/mongo: event is required")
	}
	if e.InstanceID == "" {
		return errors.New("runlog/mongo: instance_id is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	seq, err := s.counters.IncrementAndGet(ctx, e.InstanceID)
	if err != nil {
		return fmt.Errorf("runlog/mongo: incrementing sequence counter: %w", err)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}
	doc := eventDocument{
		InstanceID: e.InstanceID,
		Sequence:   seq,
		Type:       string(e.Type),
		Payload:    append([]byte(nil), e.Payload...),
		Timestamp:  ts,
	}
	if err := s.events.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("runlog/mongo: inserting event: %w", err)
	}
	e.Sequence = seq
	e.Timestamp = ts
	return nil
}

// List implements runlog.Store.
func (s *Store) List(ctx context.Context, instanceID, cursorStr string, limit int) (runlog.Page, error) {
	if instanceID == "" {
		return runlog.Page{}, errors.New("runlog/mongo: instance_id is required")
	}
	if limit <= 0 {
		return runlog.Page{}, errors.New("runlog/mongo: limit must be > 0")
	}

	filter := bson.M{"instance_id": instanceID}
	if cursorStr != "" {
		after, err := strconv.ParseInt(cursorStr, 10, 64)
		if err != nil {
			return runlog.Page{}, fmt.Errorf("runlog/mongo: invalid cursor %q: %w", cursorStr, err)
		}
		filter["sequence"] = bson.M{"$gt": after}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.events.Find(ctx, filter, int64(limit+1))
	if err != nil {
		return runlog.Page{}, fmt.Errorf("runlog/mongo: query: %w", err)
	}
	defer cur.Close(ctx)

	var events []*runlog.Event
	for cur.Next(ctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return runlog.Page{}, fmt.Errorf("runlog/mongo: decoding event: %w", err)
		}
		events = append(events, &runlog.Event{
			Sequence:   doc.Sequence,
			InstanceID: doc.InstanceID,
			Type:       runlog.EventType(doc.Type),
			Payload:    append([]byte(nil), doc.Payload...),
			Timestamp:  doc.Timestamp,
		})
	}
	if err := cur.Err(); err != nil {
		return runlog.Page{}, fmt.Errorf("runlog/mongo: cursor: %w", err)
	}

	var next string
	if len(events) > limit {
		next = strconv.FormatInt(events[limit-1].Sequence, 10)
		events = events[:limit]
	}
	return runlog.Page{Events: events, NextCursor: next}, nil
}

// All implements runlog.Store by paging through List until exhausted.
func (s *Store) All(ctx context.Context, instanceID string) ([]*runlog.Event, error) {
	var all []*runlog.Event
	cursorStr := ""
	for {
		page, err := s.List(ctx, instanceID, cursorStr, 500)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Events...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursorStr = page.NextCursor
	}
}

// --- real Mongo adapters ---

type mongoCollection struct {
	c *mongodriver.Collection
}

func (m mongoCollection) InsertOne(ctx context.Context, doc eventDocument) error {
	_, err := m.c.InsertOne(ctx, doc)
	return err
}

func (m mongoCollection) Find(ctx context.Context, filter bson.M, limit int64) (cursor, error) {
	cur, err := m.c.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur}, nil
}

func (m mongoCollection) Indexes() indexView {
	return mongoIndexView{m.c.Indexes()}
}

type mongoCounterCollection struct {
	c *mongodriver.Collection
}

func (m mongoCounterCollection) IncrementAndGet(ctx context.Context, instanceID string) (int64, error) {
	var doc counterDocument
	err := m.c.FindOneAndUpdate(ctx,
		bson.M{"_id": instanceID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

type mongoCursor struct {
	c *mongodriver.Cursor
}

func (m mongoCursor) Next(ctx context.Context) bool   { return m.c.Next(ctx) }
func (m mongoCursor) Decode(val any) error            { return m.c.Decode(val) }
func (m mongoCursor) Err() error                       { return m.c.Err() }
func (m mongoCursor) Close(ctx context.Context) error { return m.c.Close(ctx) }

type mongoIndexView struct {
	v mongodriver.IndexView
}

func (m mongoIndexView) CreateOne(ctx context.Context, keys bson.D) error {
	_, err := m.v.CreateOne(ctx, mongodriver.IndexModel{Keys: keys})
	return err
}
