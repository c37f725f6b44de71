package factory

import (
	"github.com/opd-ai/cow/component"
	simtest "github.com/opd-ai/cow/testing"
	"github.com/sirupsen/logrus"
)

// Simulated component kinds registered by NewSimulationFactory.
const (
	KindSimSource    = "sim-source"
	KindSimFilter    = "sim-filter"
	KindSimAudioSink = "sim-audio-sink"
	KindSimVideoSink = "sim-video-sink"
)

// NewSimulationFactory returns a factory with every simulated kind
// registered. The audio sink reports a playback position and the video
// sink announces its preview frame when started.
func NewSimulationFactory(log *logrus.Entry) *ComponentFactory {
	f := NewComponentFactory(log)

	plain := func(n Node, log *logrus.Entry) (component.Component, error) {
		return simtest.NewSimulatedComponent(n.Name, log), nil
	}
	_ = f.Register(KindSimSource, plain)
	_ = f.Register(KindSimFilter, plain)
	_ = f.Register(KindSimAudioSink, func(n Node, log *logrus.Entry) (component.Component, error) {
		s := simtest.NewSimulatedComponent(n.Name, log)
		s.EnablePosition(true)
		return s, nil
	})
	_ = f.Register(KindSimVideoSink, func(n Node, log *logrus.Entry) (component.Component, error) {
		s := simtest.NewSimulatedComponent(n.Name, log)
		s.PreviewOnStart(true)
		return s, nil
	})
	return f
}

// PlaybackGraph is a demuxer feeding a video decoder, with an audio and a
// video sink.
func PlaybackGraph() []Node {
	return []Node{
		{Name: "demuxer", Kind: KindSimSource, Role: component.RoleSource, Media: component.MediaNone},
		{Name: "video-decoder", Kind: KindSimFilter, Role: component.RoleFilter, Media: component.MediaVideo},
		{Name: "audio-sink", Kind: KindSimAudioSink, Role: component.RoleSink, Media: component.MediaAudio},
		{Name: "video-sink", Kind: KindSimVideoSink, Role: component.RoleSink, Media: component.MediaVideo},
	}
}
