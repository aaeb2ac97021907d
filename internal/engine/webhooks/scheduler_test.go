package webhooks

import (
	"sync"
	"testing"
	"time"
)

type countingProcessor struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
}

func (p *countingProcessor) Process(entryID string) {
	p.mu.Lock()
	p.seen = append(p.seen, entryID)
	p.mu.Unlock()
	select {
	case p.done <- struct{}{}:
	default:
	}
}

func TestTimerScheduler_ImmediateSubmit(t *testing.T) {
	scheduler := NewTimerScheduler(2)
	defer scheduler.Stop()

	processor := &countingProcessor{done: make(chan struct{}, 1)}
	scheduler.SetProcessor(processor)

	scheduler.Submit("whq_1", 0)

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Processor was not invoked")
	}

	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.seen) != 1 || processor.seen[0] != "whq_1" {
		t.Errorf("Expected whq_1 processed once, got %v", processor.seen)
	}
}

func TestTimerScheduler_DelayedSubmit(t *testing.T) {
	scheduler := NewTimerScheduler(1)
	defer scheduler.Stop()

	processor := &countingProcessor{done: make(chan struct{}, 1)}
	scheduler.SetProcessor(processor)

	start := time.Now()
	scheduler.Submit("whq_1", 50*time.Millisecond)

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Processor was not invoked")
	}

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected at least 50ms delay, got %v", elapsed)
	}
}

func TestTimerScheduler_StopDropsPendingTimers(t *testing.T) {
	scheduler := NewTimerScheduler(1)
	processor := &countingProcessor{done: make(chan struct{}, 1)}
	scheduler.SetProcessor(processor)

	scheduler.Submit("whq_1", time.Hour)
	scheduler.Stop()

	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.seen) != 0 {
		t.Errorf("Expected no processing after stop, got %v", processor.seen)
	}
}
