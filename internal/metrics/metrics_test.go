package metrics

import (
	"errors"
	"testing"
	"time"
)

type recorded struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	counters  []recorded
	durations []recorded
	flushed   int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.counters = append(f.counters, recorded{name, delta, labels})
}

func (f *fakeBackend) ObserveDuration(name string, value float64, labels Labels) {
	f.durations = append(f.durations, recorded{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.flushed++
	return nil
}

func withFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{}
	SetBackend(f)
	t.Cleanup(func() { backend = nopBackend{} })
	return f
}

func TestSetBackendIgnoresNil(t *testing.T) {
	f := withFakeBackend(t)
	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if f.flushed != 1 {
		t.Errorf("flushed = %d, want 1 (nil must not replace the backend)", f.flushed)
	}
}

func TestRecordStep(t *testing.T) {
	f := withFakeBackend(t)

	RecordStep("schools_2024", "load", nil, 250*time.Millisecond)
	RecordStep("schools_2024", "swap", errors.New("boom"), time.Millisecond)

	if len(f.counters) != 2 || len(f.durations) != 2 {
		t.Fatalf("counters = %d, durations = %d", len(f.counters), len(f.durations))
	}
	if f.counters[0].name != "import_step_total" || f.counters[0].labels["status"] != "success" {
		t.Errorf("first counter = %+v", f.counters[0])
	}
	if f.counters[1].labels["status"] != "failure" || f.counters[1].labels["step"] != "swap" {
		t.Errorf("second counter = %+v", f.counters[1])
	}
	if f.durations[0].value != 0.25 {
		t.Errorf("duration = %v, want 0.25", f.durations[0].value)
	}
}

func TestRecordRowsSkipsNonPositive(t *testing.T) {
	f := withFakeBackend(t)

	RecordRows("schools_2024", "inserted", 0)
	RecordRows("schools_2024", "inserted", -3)
	if len(f.counters) != 0 {
		t.Fatalf("non-positive deltas recorded: %+v", f.counters)
	}

	RecordRows("schools_2024", "inserted", 42)
	if len(f.counters) != 1 || f.counters[0].value != 42 {
		t.Fatalf("counters = %+v", f.counters)
	}
}

func TestRecordQuery(t *testing.T) {
	f := withFakeBackend(t)

	RecordQuery("schools_2024", nil, 10*time.Millisecond)
	if len(f.counters) != 1 {
		t.Fatalf("counters = %+v", f.counters)
	}
	if f.counters[0].name != "query_total" || f.counters[0].labels["table"] != "schools_2024" {
		t.Errorf("counter = %+v", f.counters[0])
	}
}
