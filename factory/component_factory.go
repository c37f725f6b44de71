package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/logging"
	"github.com/opd-ai/cow/pipeline"
	"github.com/sirupsen/logrus"
)

// Node describes one component of a graph.
type Node struct {
	Name  string
	Kind  string
	Role  component.Role
	Media component.MediaType
}

func (n Node) validate() error {
	if n.Name == "" || n.Kind == "" {
		return fmt.Errorf("%w: name %q kind %q", ErrInvalidNode, n.Name, n.Kind)
	}
	return nil
}

// Constructor creates the component for node.
type Constructor func(node Node, log *logrus.Entry) (component.Component, error)

// ComponentFactory creates components by kind.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type ComponentFactory struct {
	log *logrus.Entry

	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewComponentFactory creates a factory with no registered kinds.
func NewComponentFactory(log *logrus.Entry) *ComponentFactory {
	return &ComponentFactory{
		log:   logging.OrDiscard(log).WithField("package", "factory"),
		ctors: make(map[string]Constructor),
	}
}

// Register binds kind to ctor. Kinds cannot be re-registered.
func (f *ComponentFactory) Register(kind string, ctor Constructor) error {
	if kind == "" || ctor == nil {
		return fmt.Errorf("%w: kind %q", ErrInvalidNode, kind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.ctors[kind]; dup {
		return fmt.Errorf("%s: %w", kind, ErrDuplicateKind)
	}
	f.ctors[kind] = ctor

	f.log.WithFields(logrus.Fields{
		"function": "Register",
		"kind":     kind,
	}).Debug("Registered component kind")
	return nil
}

// Kinds returns the registered kinds in sorted order.
func (f *ComponentFactory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]string, 0, len(f.ctors))
	for k := range f.ctors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Create builds the component for node.
func (f *ComponentFactory) Create(node Node) (component.Component, error) {
	if err := node.validate(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	ctor, ok := f.ctors[node.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", node.Name, ErrUnknownKind, node.Kind)
	}

	c, err := ctor(node, f.log)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"function": "Create",
			"node":     node.Name,
			"kind":     node.Kind,
			"error":    err.Error(),
		}).Warn("Component constructor failed")
		return nil, fmt.Errorf("create %s: %w", node.Name, err)
	}
	return c, nil
}

// Build creates every node and adds the components to p in node order.
// Nothing is added unless every node was created.
func (f *ComponentFactory) Build(p *pipeline.Pipeline, nodes []Node) ([]component.Component, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	seen := make(map[string]struct{}, len(nodes))
	comps := make([]component.Component, 0, len(nodes))
	for _, node := range nodes {
		if _, dup := seen[node.Name]; dup {
			return nil, fmt.Errorf("%s: %w", node.Name, ErrDuplicateNode)
		}
		seen[node.Name] = struct{}{}

		c, err := f.Create(node)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}

	for i, c := range comps {
		if err := p.AddComponent(c, nodes[i].Role, nodes[i].Media); err != nil {
			return nil, err
		}
	}

	f.log.WithFields(logrus.Fields{
		"function": "Build",
		"pipeline": p.Name(),
		"nodes":    len(nodes),
	}).Info("Built pipeline graph")
	return comps, nil
}
