package effectchain

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// NodeID identifies a node in the audio graph. Zero is never a valid node.
type NodeID uint32

// LinkID identifies a link in the audio graph. Zero is never a valid link.
type LinkID uint32

// Role classifies a node.
type Role int

const (
	RoleDevice Role = iota
	RolePlugin
	RoleSpectrumTap
	RoleLevelMeter
	RoleOutput
	// RoleStream is a client stream consuming the processed output.
	RoleStream
)

var roleNames = [...]string{"device", "plugin", "spectrum-tap", "level-meter", "output", "stream"}

func (r Role) String() string {
	if r >= 0 && int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Node is an endpoint in the graph.
type Node struct {
	ID   NodeID
	Name string
	Role Role
}

// LinkState is the activity state of a link.
type LinkState int

const (
	LinkInactive LinkState = iota
	LinkActive
)

func (s LinkState) String() string {
	if s == LinkActive {
		return "active"
	}
	return "inactive"
}

// Link is a directed connection between two nodes.
type Link struct {
	ID    LinkID
	Src   NodeID
	Dst   NodeID
	State LinkState
}

// Graph is the set of primitives the router uses to mutate topology.
type Graph interface {
	CreateLink(src, dst NodeID) (LinkID, error)
	DestroyLink(id LinkID) error
	Links() []Link
	Nodes() []Node
}

var (
	// ErrNoSuchNode is returned when a link references a node that does not exist.
	ErrNoSuchNode = errors.New("effectchain: no such node")
	// ErrNoSuchLink is returned when destroying or updating an unknown link.
	ErrNoSuchLink = errors.New("effectchain: no such link")
	// ErrCycle is returned by Order when the links form a feedback loop.
	ErrCycle = errors.New("effectchain: graph contains cycle")
)

// EventKind classifies a topology event.
type EventKind int

const (
	NodeAdded EventKind = iota
	NodeRemoved
	LinkStateChanged
)

func (k EventKind) String() string {
	switch k {
	case NodeAdded:
		return "node-added"
	case NodeRemoved:
		return "node-removed"
	case LinkStateChanged:
		return "link-state-changed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// TopologyEvent reports a change in the graph.
type TopologyEvent struct {
	Kind EventKind
	Node Node
	Link Link
}

// MemoryGraph is an in-process Graph. It is safe for concurrent use.
type MemoryGraph struct {
	mu     sync.RWMutex
	nodes  map[NodeID]Node
	links  map[LinkID]Link
	nextID uint32
	events chan TopologyEvent
}

// NewMemoryGraph returns an empty graph whose event channel buffers up to
// buffer events. Events that do not fit are dropped.
func NewMemoryGraph(buffer int) *MemoryGraph {
	return &MemoryGraph{
		nodes:  make(map[NodeID]Node),
		links:  make(map[LinkID]Link),
		events: make(chan TopologyEvent, max(buffer, 0)),
	}
}

// Events returns the topology event stream.
func (g *MemoryGraph) Events() <-chan TopologyEvent { return g.events }

func (g *MemoryGraph) emit(ev TopologyEvent) {
	select {
	case g.events <- ev:
	default:
	}
}

// AddNode inserts a node and returns its id.
func (g *MemoryGraph) AddNode(name string, role Role) NodeID {
	g.mu.Lock()
	g.nextID++
	n := Node{ID: NodeID(g.nextID), Name: name, Role: role}
	g.nodes[n.ID] = n
	g.mu.Unlock()

	g.emit(TopologyEvent{Kind: NodeAdded, Node: n})

	return n.ID
}

// RemoveNode deletes a node together with every link touching it.
func (g *MemoryGraph) RemoveNode(id NodeID) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchNode, id)
	}

	delete(g.nodes, id)
	for lid, l := range g.links {
		if l.Src == id || l.Dst == id {
			delete(g.links, lid)
		}
	}
	g.mu.Unlock()

	g.emit(TopologyEvent{Kind: NodeRemoved, Node: n})

	return nil
}

// Node returns the node with the given id.
func (g *MemoryGraph) Node(id NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	return n, ok
}

// NodeByName returns the node with the given name and lowest id.
func (g *MemoryGraph) NodeByName(name string) (Node, bool) {
	for _, n := range g.Nodes() {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// CreateLink connects src to dst. New links start inactive.
func (g *MemoryGraph) CreateLink(src, dst NodeID) (LinkID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[src]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoSuchNode, src)
	}
	if _, ok := g.nodes[dst]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoSuchNode, dst)
	}

	g.nextID++
	l := Link{ID: LinkID(g.nextID), Src: src, Dst: dst}
	g.links[l.ID] = l

	return l.ID, nil
}

// DestroyLink removes a link.
func (g *MemoryGraph) DestroyLink(id LinkID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.links[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchLink, id)
	}
	delete(g.links, id)

	return nil
}

// SetLinkState updates the activity state of a link.
func (g *MemoryGraph) SetLinkState(id LinkID, state LinkState) error {
	g.mu.Lock()
	l, ok := g.links[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchLink, id)
	}
	changed := l.State != state
	l.State = state
	g.links[id] = l
	g.mu.Unlock()

	if changed {
		g.emit(TopologyEvent{Kind: LinkStateChanged, Link: l})
	}

	return nil
}

// Links returns all links ordered by id.
func (g *MemoryGraph) Links() []Link {
	g.mu.RLock()
	out := make([]Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, l)
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b Link) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Nodes returns all nodes ordered by id.
func (g *MemoryGraph) Nodes() []Node {
	g.mu.RLock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Order returns the linked nodes in signal-flow order (Kahn's algorithm).
// Nodes without links are omitted.
func (g *MemoryGraph) Order() ([]NodeID, error) {
	links := g.Links()

	indegree := make(map[NodeID]int)
	outgoing := make(map[NodeID][]NodeID)
	for _, l := range links {
		if _, ok := indegree[l.Src]; !ok {
			indegree[l.Src] = 0
		}
		indegree[l.Dst]++
		outgoing[l.Src] = append(outgoing[l.Src], l.Dst)
	}

	queue := make([]NodeID, 0, len(indegree))
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	slices.Sort(queue)

	order := make([]NodeID, 0, len(indegree))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		order = append(order, id)
		for _, next := range outgoing[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(indegree) {
		return nil, ErrCycle
	}

	return order, nil
}
