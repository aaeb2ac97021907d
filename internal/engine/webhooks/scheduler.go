package webhooks

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler accepts delivery jobs for asynchronous execution. Submission is
// fire-and-forget; the queue row, not the scheduler, is the source of truth
// for idempotency.
type Scheduler interface {
	Submit(entryID string, delay time.Duration)
}

// Processor is the delivery entry point the scheduler invokes.
type Processor interface {
	Process(entryID string)
}

// TimerScheduler runs deliveries in-process on a bounded goroutine pool,
// delaying each job with a timer. Pending timers are lost on restart; the
// retry sweeper re-submits due entries from the durable queue.
type TimerScheduler struct {
	jobs      chan string
	processor Processor
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

func NewTimerScheduler(workers int) *TimerScheduler {
	if workers <= 0 {
		workers = 4
	}
	s := &TimerScheduler{
		jobs: make(chan string, 256),
		done: make(chan struct{}),
	}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.run()
	}
	return s
}

// SetProcessor wires the delivery worker in after construction. The worker
// needs the scheduler to re-submit retries, so the two are built in order.
func (s *TimerScheduler) SetProcessor(p Processor) {
	s.processor = p
}

func (s *TimerScheduler) Submit(entryID string, delay time.Duration) {
	if delay <= 0 {
		s.enqueue(entryID)
		return
	}
	go func() {
		select {
		case <-time.After(delay):
			s.enqueue(entryID)
		case <-s.done:
		}
	}()
}

func (s *TimerScheduler) enqueue(entryID string) {
	select {
	case s.jobs <- entryID:
	case <-s.done:
	default:
		log.Warn().Str("entry_id", entryID).Msg("Delivery queue full, dropping submission")
	}
}

func (s *TimerScheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case entryID := <-s.jobs:
			if s.processor != nil {
				s.processor.Process(entryID)
			}
		case <-s.done:
			return
		}
	}
}

func (s *TimerScheduler) Stop() {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}
