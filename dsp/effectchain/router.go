package effectchain

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrLinkCreationFailed is returned when the graph refuses a link. The
	// router is left unwired.
	ErrLinkCreationFailed = errors.New("effectchain: link creation failed")
	// ErrDuplicateNode is returned when a node would appear twice in one wiring.
	ErrDuplicateNode = errors.New("effectchain: duplicate node in chain")
	// ErrUnknownNode is returned for unknown plugin identifiers or a missing device.
	ErrUnknownNode = errors.New("effectchain: unknown node")
)

// State is the router wiring state.
type State int

const (
	StateUnwired State = iota
	StateWiring
	StateWired
)

func (s State) String() string {
	switch s {
	case StateUnwired:
		return "unwired"
	case StateWiring:
		return "wiring"
	case StateWired:
		return "wired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Endpoints are the fixed nodes every wiring terminates in.
type Endpoints struct {
	Tap    NodeID
	Meter  NodeID
	Output NodeID
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l logrus.FieldLogger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// Router wires device -> chain -> tap -> meter -> output on a Graph and
// owns every link it creates.
//
// Reconfigure, Teardown and Sweep must not overlap; callers serialize them.
// Accessors may be called from any goroutine.
type Router struct {
	graph   Graph
	plugins Resolver
	ep      Endpoints
	log     logrus.FieldLogger

	mu     sync.Mutex
	state  State
	owned  []LinkID
	chain  []string
	device NodeID
	bypass bool
}

// NewRouter returns an unwired router.
func NewRouter(g Graph, plugins Resolver, ep Endpoints, opts ...RouterOption) *Router {
	r := &Router{
		graph:   g,
		plugins: plugins,
		ep:      ep,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Reconfigure replaces the current wiring and returns the number of links
// created. With bypass set the chain is skipped.
//
// Validation errors (ErrUnknownNode, ErrDuplicateNode) leave the router
// untouched. A link creation failure destroys the partial wiring and leaves
// the router unwired.
func (r *Router) Reconfigure(chain []string, device NodeID, bypass bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.log.WithFields(logrus.Fields{
		"function": "Reconfigure",
		"chain":    chain,
		"device":   device,
		"bypass":   bypass,
	})

	path, err := r.plan(chain, device, bypass)
	if err != nil {
		log.WithError(err).Warn("Rejected filter chain")
		return 0, err
	}

	destroyed := r.release()

	r.state = StateWiring
	r.chain = slices.Clone(chain)
	r.device = device
	r.bypass = bypass

	created, err := r.connect(path)
	if err != nil {
		rolledBack := r.release()
		r.state = StateUnwired

		log.WithFields(logrus.Fields{
			"destroyed":   destroyed,
			"created":     created,
			"rolled_back": rolledBack,
			"error":       err.Error(),
		}).Error("Failed to wire filter chain")

		return 0, err
	}

	r.state = StateWired

	log.WithFields(logrus.Fields{
		"destroyed": destroyed,
		"created":   created,
	}).Info("Wired filter chain")

	return created, nil
}

// plan validates the request and returns the node sequence to link.
func (r *Router) plan(chain []string, device NodeID, bypass bool) ([]NodeID, error) {
	if device == 0 {
		return nil, fmt.Errorf("%w: no device", ErrUnknownNode)
	}

	path := []NodeID{device}
	if !bypass {
		for _, name := range chain {
			p, ok := r.plugins.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("%w: plugin %q", ErrUnknownNode, name)
			}
			path = append(path, p.NodeID())
		}
	}
	path = append(path, r.ep.Tap, r.ep.Meter, r.ep.Output)

	seen := make(map[NodeID]struct{}, len(path))
	for _, id := range path {
		if id == 0 {
			return nil, fmt.Errorf("%w: unset endpoint", ErrUnknownNode)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: node %d", ErrDuplicateNode, id)
		}
		seen[id] = struct{}{}
	}

	return path, nil
}

// connect links consecutive nodes of path, recording each link as owned.
func (r *Router) connect(path []NodeID) (int, error) {
	created := 0
	for i := 1; i < len(path); i++ {
		src, dst := path[i-1], path[i]

		id, err := r.graph.CreateLink(src, dst)
		if err != nil {
			return created, fmt.Errorf("%w: %d -> %d: %w", ErrLinkCreationFailed, src, dst, err)
		}

		r.owned = append(r.owned, id)
		created++
	}

	return created, nil
}

// release destroys every owned link. A link that cannot be destroyed is
// assumed gone with its node and is forgotten.
func (r *Router) release() int {
	destroyed := 0
	for _, id := range r.owned {
		if err := r.graph.DestroyLink(id); err != nil {
			r.log.WithFields(logrus.Fields{
				"function": "release",
				"link":     id,
				"error":    err.Error(),
			}).Warn("Failed to destroy link")
			continue
		}
		destroyed++
	}
	r.owned = r.owned[:0]

	return destroyed
}

// Teardown destroys all owned links and returns how many were destroyed.
// It is idempotent.
func (r *Router) Teardown() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	destroyed := r.release()
	r.state = StateUnwired

	r.log.WithFields(logrus.Fields{
		"function":  "Teardown",
		"destroyed": destroyed,
		"created":   0,
	}).Info("Tore down filter chain")

	return destroyed
}

// Sweep destroys links touching plugin, tap or meter nodes that the router
// does not own, such as leftovers from a previous session.
func (r *Router) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	managed := map[NodeID]struct{}{
		r.ep.Tap:   {},
		r.ep.Meter: {},
	}
	for _, p := range r.plugins.Plugins() {
		managed[p.NodeID()] = struct{}{}
	}

	destroyed := 0
	for _, l := range r.graph.Links() {
		if slices.Contains(r.owned, l.ID) {
			continue
		}
		_, src := managed[l.Src]
		_, dst := managed[l.Dst]
		if !src && !dst {
			continue
		}
		if err := r.graph.DestroyLink(l.ID); err != nil {
			r.log.WithFields(logrus.Fields{
				"function": "Sweep",
				"link":     l.ID,
				"error":    err.Error(),
			}).Warn("Failed to destroy link")
			continue
		}
		destroyed++
	}

	if destroyed > 0 {
		r.log.WithFields(logrus.Fields{
			"function":  "Sweep",
			"destroyed": destroyed,
		}).Warn("Removed stale links")
	}

	return destroyed
}

// State returns the wiring state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Owned returns a copy of the owned link ids, in creation order.
func (r *Router) Owned() []LinkID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.owned)
}

// OwnedCount returns the number of owned links.
func (r *Router) OwnedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owned)
}

// Chain returns the last accepted chain.
func (r *Router) Chain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chain)
}

// Device returns the last accepted device.
func (r *Router) Device() NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

// Bypass returns the last accepted bypass flag.
func (r *Router) Bypass() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bypass
}

// Contains reports whether node is part of the current wiring.
func (r *Router) Contains(node NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateUnwired || node == 0 {
		return false
	}
	if node == r.device || node == r.ep.Tap || node == r.ep.Meter || node == r.ep.Output {
		return true
	}
	if r.bypass {
		return false
	}
	for _, name := range r.chain {
		if p, ok := r.plugins.Lookup(name); ok && p.NodeID() == node {
			return true
		}
	}

	return false
}
