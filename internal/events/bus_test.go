package events

import (
	"testing"
	"time"

	"github.com/covercompare/membergate/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) schema.FilterChanged {
	t.Helper()
	select {
	case ev, ok := <-s.C:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return schema.FilterChanged{}
}

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Cancel()
	defer s2.Cancel()

	n := b.Publish(schema.FilterChanged{Filter: "pending"})
	assert.Equal(t, 2, n)
	assert.Equal(t, "pending", receive(t, s1).Filter)
	assert.Equal(t, "pending", receive(t, s2).Filter)
}

func TestBus_LateSubscriberGetsLastFilter(t *testing.T) {
	b := NewBus()
	b.Publish(schema.FilterChanged{Filter: "active"})
	b.Publish(schema.FilterChanged{Filter: "deleted"})

	s := b.Subscribe()
	defer s.Cancel()
	assert.Equal(t, "deleted", receive(t, s).Filter)
}

func TestBus_Cancel(t *testing.T) {
	b := NewBus()
	s := b.Subscribe()
	assert.Equal(t, 1, b.Len())

	s.Cancel()
	s.Cancel()
	assert.Equal(t, 0, b.Len())

	_, ok := <-s.C
	assert.False(t, ok)
	assert.Equal(t, 0, b.Publish(schema.FilterChanged{Filter: "all"}))
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	s := b.Subscribe()
	defer s.Cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(schema.FilterChanged{Filter: "all"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
	assert.Len(t, s.C, subscriberBuffer)
}
