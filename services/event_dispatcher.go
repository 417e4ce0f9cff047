package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-service/events"
	"github.com/yeremiapane/table-service/utils"
)

// EventDispatcher fans committed table events out to its sinks on a
// background goroutine so a slow broker never holds a table lock. When the
// queue is full the event is dropped and logged.
type EventDispatcher struct {
	Sinks          []events.Sink
	PublishTimeout time.Duration

	queue    chan events.Event
	StopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

func NewEventDispatcher(buffer int, sinks ...events.Sink) *EventDispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventDispatcher{
		Sinks:          sinks,
		PublishTimeout: 5 * time.Second,
		queue:          make(chan events.Event, buffer),
		StopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (d *EventDispatcher) Emit(e events.Event) {
	select {
	case d.queue <- e:
	default:
		utils.ErrorLogger.WithFields(logrus.Fields{"table": e.TableNumber, "event": e.Type}).
			Warn("Event queue full, dropping event")
	}
}

func (d *EventDispatcher) Start() {
	go func() {
		defer close(d.done)
		for {
			select {
			case e := <-d.queue:
				d.publish(e)
			case <-d.StopChan:
				d.drain()
				return
			}
		}
	}()
}

// Stop delivers whatever is still queued, then returns.
func (d *EventDispatcher) Stop() {
	d.once.Do(func() {
		close(d.StopChan)
		<-d.done
	})
}

func (d *EventDispatcher) drain() {
	for {
		select {
		case e := <-d.queue:
			d.publish(e)
		default:
			return
		}
	}
}

func (d *EventDispatcher) publish(e events.Event) {
	for _, sink := range d.Sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.PublishTimeout)
		err := sink.Publish(ctx, e)
		cancel()
		if err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"table": e.TableNumber,
				"event": e.Type,
				"sink":  sink.Name(),
			}).Errorf("Failed to publish event: %v", err)
		}
	}
}
