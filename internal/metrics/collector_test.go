package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeLister struct {
	names  []string
	counts map[string]int
}

func (f *fakeLister) GetActiveChannels() []string { return f.names }
func (f *fakeLister) GetClientCount(name string) int {
	return f.counts[name]
}

func TestCollectorSamplesActiveChannelsAndListeners(t *testing.T) {
	lister := &fakeLister{
		names:  []string{"room-a", "room-b"},
		counts: map[string]int{"room-a": 2, "room-b": 0},
	}
	c := NewCollector(lister, 10*time.Millisecond)
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(ActiveChannels) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := testutil.ToFloat64(ActiveChannels); got != 2 {
		t.Fatalf("ActiveChannels = %v, want 2", got)
	}
	if got := testutil.ToFloat64(Listeners.WithLabelValues("room-a")); got != 2 {
		t.Errorf("Listeners{room-a} = %v, want 2", got)
	}
}
