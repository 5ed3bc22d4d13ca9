// Package worker provides Group, the task runner behind the pipeline controller.
//
// A Group starts named tasks on their own goroutines and joins them with Wait,
// built on golang.org/x/sync/errgroup. Unlike errgroup.WithContext, a failing
// task does not cancel the others: the controller must be able to let consumers
// drain even when a producer failed. Wait returns the first error.
//
// Panics inside a task are recovered, logged with their stack and returned from
// Wait as a fatal error wrapping ErrTaskPanicked.
//
// # Usage
//
//	producers, err := worker.NewGroup(ctx, "producers",
//	    worker.WithLogger(logger),
//	    worker.WithMetricsRegistry(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	for _, p := range tasks {
//	    if err := producers.Go(p.Name(), p.Run); err != nil {
//	        return err
//	    }
//	}
//	err = producers.Wait()
//
// Calling Go after Wait fails with errors.ErrSpawnFailed.
//
// # Metrics
//
// WithMetricsRegistry exports, labelled by group name:
//
//	pixelflow_worker_active_tasks
//	pixelflow_worker_spawned_total
//	pixelflow_worker_failed_total
//	pixelflow_worker_panics_total
//	pixelflow_worker_task_duration_seconds
package worker
