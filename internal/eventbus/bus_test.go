package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Topic: TopicPostPublished, Data: PostResult{EventID: "ab12cd34"}})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Topic != TopicPostPublished {
				t.Fatalf("sub %d got topic %q", i, ev.Topic)
			}
			if ev.Time.IsZero() {
				t.Fatalf("sub %d: publish must stamp the time", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d got nothing", i)
		}
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(Event{Topic: TopicPostFailed})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if got := len(ch); got != 1 {
		t.Fatalf("buffered = %d, want 1", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Topic: TopicEventCompleted})
}
