// Package factory builds pipeline graphs from a list of nodes.
//
// Each node names a kind; a ComponentFactory maps kinds to constructors.
// Production code registers constructors for its real demuxers, decoders
// and sinks, while NewSimulationFactory registers in-memory components
// from the testing package so a whole graph can be exercised without
// codecs or devices.
//
// # Usage
//
//	f := factory.NewSimulationFactory(log)
//	comps, err := f.Build(p, factory.PlaybackGraph())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Registering kinds
//
//	f := factory.NewComponentFactory(log)
//	err := f.Register("mp4-demuxer", func(n factory.Node, log *logrus.Entry) (component.Component, error) {
//	    return demux.New(n.Name, log)
//	})
//
// Build creates every component before adding any of them, so a graph
// that fails to build leaves the pipeline untouched.
package factory
