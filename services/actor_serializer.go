package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

const defaultActorTimeout = 30 * time.Second

// ActorSerializer gives every table number its own actor. Mutations are
// queued to the actor's mailbox and run one at a time on it.
type ActorSerializer struct {
	system  *actor.ActorSystem
	props   *actor.Props
	mu      sync.Mutex
	pids    map[int]*actor.PID
	Timeout time.Duration
}

const (
	jobQueued int32 = iota
	jobRunning
	jobCancelled
)

// tableJob is claimed exactly once: either the actor starts it or the
// caller cancels it while it is still queued.
type tableJob struct {
	fn    func() error
	state atomic.Int32
	done  chan error
}

func (j *tableJob) start() bool  { return j.state.CompareAndSwap(jobQueued, jobRunning) }
func (j *tableJob) cancel() bool { return j.state.CompareAndSwap(jobQueued, jobCancelled) }

type tableActor struct{}

func (a *tableActor) Receive(c actor.Context) {
	switch msg := c.Message().(type) {
	case *tableJob:
		if !msg.start() {
			return
		}
		msg.done <- msg.fn()
	}
}

func NewActorSerializer(system *actor.ActorSystem) *ActorSerializer {
	if system == nil {
		system = actor.NewActorSystem()
	}
	return &ActorSerializer{
		system: system,
		props: actor.PropsFromProducer(func() actor.Actor {
			return &tableActor{}
		}),
		pids:    make(map[int]*actor.PID),
		Timeout: defaultActorTimeout,
	}
}

func (s *ActorSerializer) pid(number int) *actor.PID {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid, ok := s.pids[number]
	if !ok {
		pid = s.system.Root.Spawn(s.props)
		s.pids[number] = pid
	}
	return pid
}

// Do -> queue fn on the table's actor. A caller that gives up only skips a
// job that has not started; once fn runs, Do waits for its result.
func (s *ActorSerializer) Do(ctx context.Context, number int, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(s.Timeout)
	defer timer.Stop()

	job := &tableJob{fn: fn, done: make(chan error, 1)}
	s.system.Root.Send(s.pid(number), job)

	var cause error
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		cause = ctx.Err()
	case <-timer.C:
		cause = context.DeadlineExceeded
	}

	if job.cancel() {
		return fmt.Errorf("table %d actor: %w", number, cause)
	}
	return <-job.done
}

// Stop stops every table actor and waits for them to finish their queues.
func (s *ActorSerializer) Stop() {
	s.mu.Lock()
	pids := s.pids
	s.pids = make(map[int]*actor.PID)
	s.mu.Unlock()

	for _, pid := range pids {
		_ = s.system.Root.StopFuture(pid).Wait()
	}
}
