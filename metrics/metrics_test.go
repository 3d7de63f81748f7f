package metrics_test

import (
	"sync"
	"testing"

	"github.com/firasghr/GoChallengeSolver/metrics"
)

func TestIncrements(t *testing.T) {
	m := metrics.NewMetrics()
	m.IncrementFetched()
	m.IncrementFetched()
	m.IncrementDisassemblies()
	m.IncrementDisassemblyFailures()
	m.AddSlotsResolved(120)
	m.AddSlotsResolved(0)
	m.AddFallbackAliases(3)
	m.IncrementSubmissions()

	fetched, disassemblies, failures, slots := m.Snapshot()
	if fetched != 2 {
		t.Errorf("ScriptsFetched: got %d, want 2", fetched)
	}
	if disassemblies != 1 {
		t.Errorf("Disassemblies: got %d, want 1", disassemblies)
	}
	if failures != 1 {
		t.Errorf("DisassemblyFailures: got %d, want 1", failures)
	}
	if slots != 120 {
		t.Errorf("SlotsResolved: got %d, want 120", slots)
	}
	if m.FallbackAliases != 3 {
		t.Errorf("FallbackAliases: got %d, want 3", m.FallbackAliases)
	}
	if m.Submissions != 1 {
		t.Errorf("Submissions: got %d, want 1", m.Submissions)
	}
}

func TestNegativeAddsIgnored(t *testing.T) {
	m := metrics.NewMetrics()
	m.AddSlotsResolved(-5)
	m.AddFallbackAliases(-1)

	if _, _, _, slots := m.Snapshot(); slots != 0 {
		t.Errorf("SlotsResolved: got %d, want 0", slots)
	}
	if m.FallbackAliases != 0 {
		t.Errorf("FallbackAliases: got %d, want 0", m.FallbackAliases)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := metrics.NewMetrics()
	const goroutines = 1000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			m.IncrementFetched()
			m.IncrementDisassemblies()
			m.AddSlotsResolved(2)
		}()
	}
	wg.Wait()

	fetched, disassemblies, _, slots := m.Snapshot()
	if fetched != goroutines {
		t.Errorf("ScriptsFetched: got %d, want %d", fetched, goroutines)
	}
	if disassemblies != goroutines {
		t.Errorf("Disassemblies: got %d, want %d", disassemblies, goroutines)
	}
	if slots != 2*goroutines {
		t.Errorf("SlotsResolved: got %d, want %d", slots, 2*goroutines)
	}
}
