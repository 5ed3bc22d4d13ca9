// Package pipeline runs the producer, consumer and observer tasks around one
// bounded queue.
//
// # Lifecycle
//
// A Controller moves through four states:
//
//	Init      allocate the queue and task table, construct every task
//	Running   producers and consumers run concurrently
//	Draining  all producers joined, running flag cleared
//	Stopped   consumers and observer joined, Report built
//
// Failing to allocate the queue (errors.ErrAllocationFailed) or to construct a
// task (errors.ErrSpawnFailed) ends the run in Init; no task is started.
//
// # Tasks
//
// Every task receives the same *Shared: the queue, the TaskTable and the
// running flag. There is no package-level state.
//
// A Producer opens its own cursor over the source and, for each item, decodes
// it, stamps its ProducerID and pushes it. Decode failures are logged and the
// item skipped. With AwaitResults the producer keeps the futures it got back
// and waits on them before returning.
//
// A Consumer loops while the run is active or the queue is non-empty. Each pop
// is bounded by PopTimeout; a timeout only means the exit condition is checked
// again. Popped items go through the transform pipeline, are encoded in the
// format their name implies and stored under cons-<consumer>-<base name>. The
// future is then resolved with the transformed image, or with an error wrapping
// errors.ErrEncodeFailed.
//
// The Observer samples the queue every interval while the run is active and
// passes each Snapshot to a Reporter. It never waits on a future; items it saw
// pending are reported again once their future resolves.
//
// # Example
//
//	ctrl, err := pipeline.NewController(pipeline.DefaultConfig(), pipeline.Dependencies{
//	    Source:   source.NewDir("imagens/entrada"),
//	    Decoder:  codec.New(),
//	    Encoder:  codec.New(),
//	    Store:    filestore.New("imagens/saida"),
//	    Reporter: pipeline.NewConsoleReporter(os.Stdout),
//	})
//	if err != nil {
//	    return err
//	}
//	report, err := ctrl.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	return report.Write(os.Stdout, pipeline.FormatText)
package pipeline
