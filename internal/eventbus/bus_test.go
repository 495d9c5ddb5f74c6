package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestPublishFansOutByPrefix(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	rem, unsubRem := b.Subscribe(4, "reminder.")
	defer unsubRem()

	b.Publish(Event{Type: TaskStarted})
	b.Publish(Event{Type: ReminderFired, Data: "x"})

	if got := (<-all).Type; got != TaskStarted {
		t.Fatalf("all[0] = %s, want %s", got, TaskStarted)
	}
	if got := (<-all).Type; got != ReminderFired {
		t.Fatalf("all[1] = %s, want %s", got, ReminderFired)
	}
	e := <-rem
	if e.Type != ReminderFired {
		t.Fatalf("filtered subscriber got %s", e.Type)
	}
	if e.Time.IsZero() {
		t.Fatal("Publish should stamp Time")
	}
	select {
	case extra := <-rem:
		t.Fatalf("unexpected event %s", extra.Type)
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Type: ReminderCreated})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	b.Publish(Event{Type: ReminderDeleted})
}

func TestPublishDuringUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					b.Publish(Event{Type: ReminderFired})
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		ch, unsub := b.Subscribe(1)
		unsub()
		for range ch {
		}
	}
	close(stop)
	wg.Wait()
}
