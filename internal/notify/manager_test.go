package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) handle(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *eventCollector) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d events, got %d", n, c.count())
}

func TestManagerDeliversSubscribedEvents(t *testing.T) {
	broker := NewInMemoryBroker()
	manager := NewSubscriptionManager(broker, zap.NewNop())
	defer manager.Stop()

	collector := &eventCollector{}
	require.NoError(t, manager.Start(context.Background(), "user-1", []string{TableAttendance}, nil, collector.handle))
	assert.Equal(t, "user-1", manager.ActiveUser())

	require.NoError(t, broker.Publish(context.Background(), Event{Table: TableAttendance}))
	collector.waitFor(t, 1)
}

func TestManagerIdentityChangeTearsDownPreviousSession(t *testing.T) {
	broker := NewInMemoryBroker()
	manager := NewSubscriptionManager(broker, zap.NewNop())
	defer manager.Stop()

	first := &eventCollector{}
	require.NoError(t, manager.Start(context.Background(), "user-1", []string{TableAttendance}, nil, first.handle))

	second := &eventCollector{}
	require.NoError(t, manager.Start(context.Background(), "user-2", []string{TableAttendance}, nil, second.handle))
	assert.Equal(t, "user-2", manager.ActiveUser())

	require.NoError(t, broker.Publish(context.Background(), Event{Table: TableAttendance}))
	second.waitFor(t, 1)

	assert.Equal(t, 0, first.count(), "previous identity must stop receiving events")
}

func TestManagerStopIsIdempotent(t *testing.T) {
	broker := NewInMemoryBroker()
	manager := NewSubscriptionManager(broker, zap.NewNop())

	collector := &eventCollector{}
	require.NoError(t, manager.Start(context.Background(), "user-1", []string{TableCourses}, nil, collector.handle))

	manager.Stop()
	manager.Stop()

	assert.Equal(t, "", manager.ActiveUser())

	require.NoError(t, broker.Publish(context.Background(), Event{Table: TableCourses}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, collector.count())
}

func TestManagerAppliesFilter(t *testing.T) {
	broker := NewInMemoryBroker()
	manager := NewSubscriptionManager(broker, zap.NewNop())
	defer manager.Stop()

	collector := &eventCollector{}
	require.NoError(t, manager.Start(context.Background(), "student-1", []string{TableEnrollments}, ScopeFilter("student-1"), collector.handle))

	require.NoError(t, broker.Publish(context.Background(), Event{Table: TableEnrollments, Scope: "student-2"}))
	require.NoError(t, broker.Publish(context.Background(), Event{Table: TableEnrollments, Scope: "student-1"}))
	require.NoError(t, broker.Publish(context.Background(), Event{Table: TableEnrollments}))

	collector.waitFor(t, 2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, collector.count(), "events scoped to other students are filtered out")
}

func TestScopeFilter(t *testing.T) {
	filter := ScopeFilter("s1")

	assert.True(t, filter(Event{Scope: ""}), "unscoped events pass")
	assert.True(t, filter(Event{Scope: "s1"}))
	assert.False(t, filter(Event{Scope: "s2"}))
}
