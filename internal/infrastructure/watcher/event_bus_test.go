package watcher

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/convomemory/recall/internal/domain/events"
	"github.com/stretchr/testify/assert"
)

func fileEvent(t events.EventType) *events.SessionFileEvent {
	return &events.SessionFileEvent{EventType: t, SessionID: "s1", EventTime: time.Now()}
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var received atomic.Bool
	unsub := bus.Subscribe(events.SessionFileCreated, events.HandlerFunc(func(event events.Event) error {
		received.Store(true)
		return nil
	}))
	defer unsub()

	bus.Publish(fileEvent(events.SessionFileCreated))

	assert.Eventually(t, received.Load, time.Second, 10*time.Millisecond)
}

func TestEventBus_MultipleHandlersAndTypes(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var count atomic.Int32
	handler := events.HandlerFunc(func(event events.Event) error {
		count.Add(1)
		return nil
	})
	for i := 0; i < 3; i++ {
		defer bus.Subscribe(events.SessionFileModified, handler)()
	}
	defer bus.SubscribeMultiple([]events.EventType{events.SessionFileCreated, events.IndexPassFinished}, handler)()

	bus.Publish(fileEvent(events.SessionFileModified))
	bus.Publish(fileEvent(events.SessionFileCreated))
	bus.Publish(&events.IndexProgressEvent{EventType: events.IndexPassFinished, EventTime: time.Now()})
	bus.Publish(fileEvent(events.SessionFileDeleted)) // 无订阅者

	assert.Eventually(t, func() bool { return count.Load() == 5 }, time.Second, 10*time.Millisecond)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var first, second atomic.Int32
	unsubFirst := bus.Subscribe(events.SessionFileCreated, events.HandlerFunc(func(events.Event) error {
		first.Add(1)
		return nil
	}))
	defer bus.Subscribe(events.SessionFileCreated, events.HandlerFunc(func(events.Event) error {
		second.Add(1)
		return nil
	}))()

	unsubFirst()
	unsubFirst() // 重复调用无副作用

	bus.Publish(fileEvent(events.SessionFileCreated))

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestEventBus_HandlerErrorAndPanicIsolated(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var ok atomic.Bool
	defer bus.Subscribe(events.SessionFileCreated, events.HandlerFunc(func(events.Event) error {
		return errors.New("handler failed")
	}))()
	defer bus.Subscribe(events.SessionFileCreated, events.HandlerFunc(func(events.Event) error {
		panic("boom")
	}))()
	defer bus.Subscribe(events.SessionFileCreated, events.HandlerFunc(func(events.Event) error {
		ok.Store(true)
		return nil
	}))()

	bus.Publish(fileEvent(events.SessionFileCreated))

	assert.Eventually(t, ok.Load, time.Second, 10*time.Millisecond)
}

func TestEventBus_CloseWaitsAndDropsLaterEvents(t *testing.T) {
	bus := NewEventBus()

	var done atomic.Int32
	bus.Subscribe(events.SessionFileCreated, events.HandlerFunc(func(events.Event) error {
		time.Sleep(50 * time.Millisecond)
		done.Add(1)
		return nil
	}))

	bus.Publish(fileEvent(events.SessionFileCreated))
	bus.Close()
	assert.Equal(t, int32(1), done.Load(), "close should wait for in-flight handlers")

	bus.Publish(fileEvent(events.SessionFileCreated))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), done.Load(), "events after close are dropped")
	bus.Close()
}
