package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/judev34/parking-montpellier-app/internal/invalidation"
)

type fakeDropper struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	entities  []string
	catalog   int
}

func (f *fakeDropper) InvalidateEntity(_ context.Context, id string) error {
	f.mu.Lock()
	f.entities = append(f.entities, id)
	f.mu.Unlock()
	if f.failFirst.CompareAndSwap(true, false) {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeDropper) InvalidateCatalog(context.Context) error {
	f.mu.Lock()
	f.catalog++
	f.mu.Unlock()
	return nil
}

type fakeRefresher struct {
	calls atomic.Int64
}

func (f *fakeRefresher) RefreshCatalog(context.Context) { f.calls.Add(1) }

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "parking-updates" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(op, entity string) []byte {
	ev := invalidation.Event{Version: 1, Op: op, EntityID: entity, TS: time.Now().UTC()}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(d *fakeDropper, r *fakeRefresher) *Consumer {
	cfg := Config{Brokers: []string{"x"}, Topic: "parking-updates", GroupID: "g"}
	var refresher Refresher
	if r != nil {
		refresher = r
	}
	return New(cfg, nil, d, refresher)
}

func TestProcessOne_UpdateDropsEntityAndNudgesRefresh(t *testing.T) {
	d := &fakeDropper{}
	r := &fakeRefresher{}
	c := newConsumerForTest(d, r)

	msg := &sarama.ConsumerMessage{Topic: "parking-updates", Offset: 1,
		Value: eventBytes("update", "urn:ngsi-ld:parking:001")}
	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(d.entities) != 1 || d.entities[0] != "urn:ngsi-ld:parking:001" {
		t.Fatalf("entities=%v", d.entities)
	}
	if r.calls.Load() != 1 {
		t.Fatalf("refresh nudges=%d want 1", r.calls.Load())
	}
}

func TestProcessOne_ReloadDropsCatalog(t *testing.T) {
	d := &fakeDropper{}
	c := newConsumerForTest(d, nil)

	msg := &sarama.ConsumerMessage{Topic: "parking-updates", Offset: 2,
		Value: eventBytes("reload", "")}
	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if d.catalog != 1 || len(d.entities) != 0 {
		t.Fatalf("catalog=%d entities=%v", d.catalog, d.entities)
	}
}

func TestProcessOne_PoisonMessagesAreDroppedNotRetried(t *testing.T) {
	d := &fakeDropper{}
	c := newConsumerForTest(d, nil)

	garbage := &sarama.ConsumerMessage{Topic: "parking-updates", Offset: 3, Value: []byte("{nope")}
	if err := c.ProcessOne(context.Background(), garbage); err != nil {
		t.Fatalf("garbage should be swallowed: %v", err)
	}

	invalid := &sarama.ConsumerMessage{Topic: "parking-updates", Offset: 4,
		Value: eventBytes("update", "")}
	if err := c.ProcessOne(context.Background(), invalid); err != nil {
		t.Fatalf("invalid event should be swallowed: %v", err)
	}
	if len(d.entities) != 0 && d.catalog != 0 {
		t.Fatalf("nothing should have been invalidated")
	}
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	d := &fakeDropper{}
	c := newConsumerForTest(d, nil)

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: context.Background()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	cl := &claim{part: 0, msgs: ch}

	ch <- &sarama.ConsumerMessage{Topic: "parking-updates", Partition: 0, Offset: 10, Value: eventBytes("update", "a")}
	ch <- &sarama.ConsumerMessage{Topic: "parking-updates", Partition: 0, Offset: 11, Value: eventBytes("update", "b")}
	close(ch)

	if err := g.ConsumeClaim(s, cl); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	d := &fakeDropper{}
	d.failFirst.Store(true)
	c := newConsumerForTest(d, nil)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "parking-updates", Partition: 0, Offset: 5,
		Value: eventBytes("update", "urn:ngsi-ld:parking:002")}
	if err := c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}
