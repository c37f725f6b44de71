// Package cow is the playback front end of the Cow media pipeline core.
//
// Cow drives a graph of media components (demuxers, decoders, sinks) as one
// state machine. Every component answers an operation either synchronously
// or later through an event; the pipeline waits at a barrier until every
// participant has answered, aggregates end-of-stream across sinks and runs
// seeks and resets as compound operations on a dedicated command thread.
//
// # Getting Started
//
// Load configuration, build a graph and drive it with blocking calls:
//
//	cfg, err := config.Load(nil, ".env")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	player, err := cow.NewPlayer(cfg, "movie", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer player.Close()
//
//	if _, err := player.Build(factory.NewSimulationFactory(nil), factory.PlaybackGraph()); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	_ = player.Prepare(ctx)
//	_ = player.Play(ctx)
//	_ = player.Seek(ctx, 30_000)
//	_ = player.WaitEOS(ctx)
//
// # Core Types
//
//   - [Player]: blocking facade over a pipeline.Pipeline
//
// # Packages
//
//   - msgthread: single-goroutine actors with delayed and request/response messages
//   - component: the component contract and its state machine
//   - pipeline: the barrier orchestrator, EOS aggregation and seek coalescing
//   - monitor: flow watermarks and per-call performance statistics
//   - media: reference-counted buffers with typed metadata
//   - config, logging: tuning values and structured logging
//   - factory, testing: graph construction and simulated components
//
// # Thread Safety
//
// Player methods are safe for concurrent use but the blocking calls must
// not be made from a pipeline listener, which runs on the event thread.
package cow
