package factory

import (
	"errors"
	"testing"

	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/pipeline"
	simtest "github.com/opd-ai/cow/testing"
	"github.com/sirupsen/logrus"
)

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if err := p.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

// TestSimulationFactoryKinds verifies every simulated kind is registered
func TestSimulationFactoryKinds(t *testing.T) {
	f := NewSimulationFactory(nil)

	want := []string{KindSimAudioSink, KindSimFilter, KindSimSource, KindSimVideoSink}
	got := f.Kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %d kinds, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kind %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

// TestRegisterRejectsDuplicatesAndBadInput verifies registration errors
func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	f := NewComponentFactory(nil)
	ctor := func(n Node, log *logrus.Entry) (component.Component, error) {
		return simtest.NewSimulatedComponent(n.Name, log), nil
	}

	if err := f.Register("decoder", ctor); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := f.Register("decoder", ctor); !errors.Is(err, ErrDuplicateKind) {
		t.Errorf("expected ErrDuplicateKind, got %v", err)
	}
	if err := f.Register("", ctor); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("expected ErrInvalidNode for empty kind, got %v", err)
	}
	if err := f.Register("encoder", nil); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("expected ErrInvalidNode for nil constructor, got %v", err)
	}
}

// TestCreate verifies Create dispatches on kind and configures the sinks
func TestCreate(t *testing.T) {
	f := NewSimulationFactory(nil)

	c, err := f.Create(Node{Name: "speaker", Kind: KindSimAudioSink, Role: component.RoleSink, Media: component.MediaAudio})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.Name() != "speaker" {
		t.Errorf("expected name speaker, got %s", c.Name())
	}
	sim, ok := c.(*simtest.SimulatedComponent)
	if !ok {
		t.Fatalf("expected *SimulatedComponent, got %T", c)
	}
	sim.SetPosition(1500)
	if ms, err := sim.Position(); err != nil || ms != 1500 {
		t.Errorf("audio sink should report position, got %d, %v", ms, err)
	}

	if _, err := f.Create(Node{Name: "x", Kind: "hevc-decoder"}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := f.Create(Node{Kind: KindSimSource}); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("expected ErrInvalidNode for unnamed node, got %v", err)
	}
}

// TestCreateWrapsConstructorError verifies constructor failures are wrapped
func TestCreateWrapsConstructorError(t *testing.T) {
	f := NewComponentFactory(nil)
	failure := errors.New("no hardware decoder")
	_ = f.Register("hw-decoder", func(Node, *logrus.Entry) (component.Component, error) {
		return nil, failure
	})

	_, err := f.Create(Node{Name: "dec", Kind: "hw-decoder"})
	if !errors.Is(err, failure) {
		t.Errorf("expected wrapped constructor error, got %v", err)
	}
}

// TestBuildPlaybackGraph verifies Build adds every node to the pipeline
func TestBuildPlaybackGraph(t *testing.T) {
	p := newTestPipeline(t)
	f := NewSimulationFactory(nil)

	comps, err := f.Build(p, PlaybackGraph())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(comps) != 4 {
		t.Fatalf("expected 4 components, got %d", len(comps))
	}

	added := p.Components()
	for i, c := range comps {
		if added[i].ID() != c.ID() {
			t.Errorf("component %d: pipeline order differs from graph order", i)
		}
	}
	if n := p.ConnectedStreamCount(); n != 2 {
		t.Errorf("expected 2 connected streams from two sinks, got %d", n)
	}
}

// TestBuildIsAllOrNothing verifies a failing node leaves the pipeline empty
func TestBuildIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		want  error
	}{
		{"empty", nil, ErrEmptyGraph},
		{"unknown kind", append(PlaybackGraph(), Node{Name: "subs", Kind: "subtitle-sink"}), ErrUnknownKind},
		{"duplicate name", append(PlaybackGraph(), Node{Name: "demuxer", Kind: KindSimSource}), ErrDuplicateNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t)
			_, err := NewSimulationFactory(nil).Build(p, tt.nodes)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if n := len(p.Components()); n != 0 {
				t.Errorf("expected no components added, got %d", n)
			}
		})
	}
}
