package notify

import (
	"sync"
	"testing"
)

func TestSink_AppendDrainLen(t *testing.T) {
	s := NewSink()
	if s.Len() != 0 {
		t.Fatalf("new sink Len = %d", s.Len())
	}

	s.Append(AnimalEventCreated{TenantID: "t1", EventID: "e1"})
	s.Append(SemenStockLow{TenantID: "t1", SireName: "Thunder"})
	if s.Len() != 2 {
		t.Fatalf("Len = %d; want 2", s.Len())
	}

	got := s.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain returned %d events", len(got))
	}
	if got[0].EventType() != TypeAnimalEventCreated || got[1].EventType() != TypeSemenStockLow {
		t.Fatalf("drain order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	if s.Len() != 0 {
		t.Fatalf("sink not cleared after Drain: %d", s.Len())
	}
	if again := s.Drain(); len(again) != 0 {
		t.Fatalf("second Drain returned %d events", len(again))
	}
}

func TestSink_ConcurrentAppend(t *testing.T) {
	s := NewSink()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(AnimalEventCreated{TenantID: "t1"})
		}()
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Fatalf("Len = %d; want 50", s.Len())
	}
}

func TestEvents_TenantAccessor(t *testing.T) {
	events := []Event{
		AnimalEventCreated{TenantID: "t1"},
		SemenStockLow{TenantID: "t2"},
		PregnancyCheckRecorded{TenantID: "t3"},
	}
	for i, want := range []string{"t1", "t2", "t3"} {
		if got := events[i].Tenant(); got != want {
			t.Fatalf("Tenant() = %s; want %s", got, want)
		}
	}
}
