package watch

import (
	"testing"
	"time"

	"github.com/antigravity-dev/maestro/internal/events"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus(4)
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(events.Event{Type: events.TypePageAdded, Project: "alpha", Page: "A101"})

	select {
	case evt := <-sub.Events():
		if evt.Page != "A101" {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusDropsOldestOnOverflow(t *testing.T) {
	bus := NewBus(2)
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(events.Event{Type: events.TypePageAdded, Page: "p1"})
	bus.Publish(events.Event{Type: events.TypePageAdded, Page: "p2"})
	bus.Publish(events.Event{Type: events.TypePageAdded, Page: "p3"})

	if sub.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", sub.Dropped())
	}

	first := <-sub.Events()
	second := <-sub.Events()
	if first.Page != "p2" || second.Page != "p3" {
		t.Fatalf("expected oldest dropped, got %q then %q", first.Page, second.Page)
	}
}

func TestBusUnsubscribeDoesNotAffectOthers(t *testing.T) {
	bus := NewBus(4)
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()

	sub1.Close()
	bus.Publish(events.Event{Type: events.TypeNotesUpdated, Project: "alpha"})

	select {
	case evt := <-sub2.Events():
		if evt.Project != "alpha" {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out")
	}
}

func TestClassifyPass1Change(t *testing.T) {
	evt, ok := classify("/store", "/store/alpha-plaza/pages/A101_Floor_Plan_p001/pass1.json")
	if !ok {
		t.Fatal("expected classification")
	}
	if evt.Type != events.TypePageAdded || evt.Project != "alpha-plaza" || evt.Page != "A101_Floor_Plan_p001" {
		t.Fatalf("got %+v", evt)
	}
}

func TestClassifyRegionComplete(t *testing.T) {
	evt, ok := classify("/store", "/store/alpha-plaza/pages/A101/pointers/r1/pass2.json")
	if !ok {
		t.Fatal("expected classification")
	}
	if evt.Type != events.TypeRegionComplete || evt.Region != "r1" {
		t.Fatalf("got %+v", evt)
	}
}
