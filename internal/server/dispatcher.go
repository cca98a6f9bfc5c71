package server

import (
	"context"

	"github.com/and161185/shopledger/internal/events"
)

func (srv *Server) startEventWorkers(ctx context.Context) {
	workerCount := srv.config.EventWorkers
	if workerCount < 1 {
		workerCount = 1
	}

	for i := 0; i < workerCount; i++ {
		srv.workers.Add(1)
		go srv.publishEvents(ctx)
	}
}

// emit queues an event for publishing. It never blocks the request: when
// the queue is full the event is dropped.
func (srv *Server) emit(event events.Event) {
	select {
	case srv.events <- event:
	default:
		srv.deps.Logger.Warnw("event queue full, dropping event",
			"event_id", event.ID,
			"type", event.Type,
			"key", event.Key(),
		)
	}
}

func (srv *Server) publishEvents(ctx context.Context) {
	defer srv.workers.Done()

	for {
		select {
		case <-ctx.Done():
			srv.drainEvents()
			return
		case event := <-srv.events:
			srv.publish(ctx, event)
		}
	}
}

// drainEvents publishes whatever is still queued at shutdown.
func (srv *Server) drainEvents() {
	for {
		select {
		case event := <-srv.events:
			srv.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (srv *Server) publish(ctx context.Context, event events.Event) {
	if err := srv.publisher.Publish(ctx, event); err != nil {
		srv.deps.Logger.Errorw("publish event",
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
	}
}
