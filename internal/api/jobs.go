package api

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"vrptw/internal/instance"
	"vrptw/internal/logx"
	"vrptw/internal/metrics"
	"vrptw/internal/model"
	"vrptw/internal/vrptw"
)

type job struct {
	run  model.Run
	inst *instance.Instance
	req  vrptw.Request
}

// enqueue hands j to the worker pool; false means the queue is full.
func (s *Server) enqueue(j job) bool {
	select {
	case s.jobs <- j:
		metrics.QueueDepth.Inc()
		return true
	default:
		return false
	}
}

// RunWorkers solves queued runs until ctx is done. Runs still queued at
// shutdown stay in the queued state.
func (s *Server) RunWorkers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.Config.Workers.Count; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case j := <-s.jobs:
					metrics.QueueDepth.Dec()
					_, _ = s.execute(ctx, j)
				}
			}
		})
	}
	return g.Wait()
}

// execute solves one run, saving and publishing every state change. The
// returned error is the pipeline error; the run is already saved as failed.
func (s *Server) execute(ctx context.Context, j job) (model.Run, error) {
	run := j.run
	ctx = logx.WithRunID(ctx, run.ID)
	saveCtx := context.WithoutCancel(ctx)

	started := time.Now().UTC()
	run.State = model.RunRunning
	run.StartedAt = &started
	s.save(saveCtx, run, model.EventRunStarted)

	out, err := vrptw.Solve(ctx, j.inst, j.req)
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.State = model.RunFailed
		run.Error = err.Error()
		s.save(saveCtx, run, model.EventRunFailed)
		return run, err
	}
	run.State = model.RunSucceeded
	run.Outcome = &out
	if len(out.Subtours) > 0 {
		log.Printf("run_id=%s solver=%s subtours=%d", run.ID, out.Solver, len(out.Subtours))
	}
	s.save(saveCtx, run, model.EventRunFinished)
	return run, nil
}

// fail marks a run that never reached a worker.
func (s *Server) fail(ctx context.Context, run model.Run, reason string) {
	now := time.Now().UTC()
	run.State = model.RunFailed
	run.Error = reason
	run.FinishedAt = &now
	s.save(context.WithoutCancel(ctx), run, model.EventRunFailed)
}

func (s *Server) save(ctx context.Context, run model.Run, eventType string) {
	if err := s.Store.UpdateRun(ctx, run); err != nil {
		log.Printf("run_id=%s op=store.update err=%v", run.ID, err)
	}
	s.publish(run, eventType)
}

// publish sends evt to stream subscribers; terminal events also go to the
// run's callback URL.
func (s *Server) publish(run model.Run, eventType string) {
	evt := model.RunEvent{Type: eventType, RunID: run.ID, At: time.Now().UTC(), Run: run}
	s.Broker.Publish(run.ID, evt)
	if !run.State.Done() {
		return
	}
	if err := s.Pub.Emit(evt); err != nil {
		log.Printf("run_id=%s op=webhook.emit err=%v", run.ID, err)
	}
}
