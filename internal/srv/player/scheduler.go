package player

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scheduler is the single goroutine that owns every SessionState. Other goroutines
// never touch session state directly: they hand closures to Do or Post. Tasks run
// in the order they were posted.
type Scheduler struct {
	lock    sync.Mutex
	pending []func()
	wake    chan struct{}

	stopOnce      sync.Once
	eventLoopStop chan struct{}
	eventLoopDone chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		wake:          make(chan struct{}, 1),
		eventLoopStop: make(chan struct{}),
		eventLoopDone: make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	logrus.Debugf("Start playback scheduler")
	go s.eventLoop()
}

// Stop asks the event loop to exit and waits for it. Pending tasks are dropped.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		logrus.Debugf("Stop playback scheduler")
		close(s.eventLoopStop)
	})
	<-s.eventLoopDone
}

// Done is closed once the event loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.eventLoopDone
}

func (s *Scheduler) eventLoop() {
	defer close(s.eventLoopDone)
	for loop := true; loop; {
		select {
		case <-s.wake:
			for _, task := range s.take() {
				s.run(task)
			}
		case <-s.eventLoopStop:
			loop = false
		}
	}
}

func (s *Scheduler) take() []func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	tasks := s.pending
	s.pending = nil
	return tasks
}

func (s *Scheduler) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.Errorf("recovered from panic in scheduler task: [%v] - stack trace : \n [%s]", rec, debug.Stack())
		}
	}()
	task()
}

// Post queues task without blocking the caller. It is safe from any goroutine,
// including the transport goroutines and the scheduler itself. The queue is
// unbounded. It returns false once the scheduler is stopping.
func (s *Scheduler) Post(task func()) bool {
	select {
	case <-s.eventLoopStop:
		return false
	default:
	}
	s.lock.Lock()
	s.pending = append(s.pending, task)
	s.lock.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs task on the scheduler and waits for it to finish. It must not be called
// from the scheduler goroutine. If ctx ends first the task may still run later.
func (s *Scheduler) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !s.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrSchedulerStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.eventLoopDone:
		select {
		case <-finished:
			return nil
		default:
			return ErrSchedulerStopped
		}
	}
}
