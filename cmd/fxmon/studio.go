package main

import (
	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
)

// Names of the plugins available in the simulated graph.
var pluginNames = []string{"equalizer", "bass_enhancer", "rnnoise"}

// studio is a simulated audio graph: one capture device, the plugin nodes,
// the analysis taps, the output node and one client stream.
type studio struct {
	graph   *effectchain.MemoryGraph
	plugins *effectchain.Registry
	ep      effectchain.Endpoints
	player  effectchain.NodeID
}

func newStudio(device string) *studio {
	g := effectchain.NewMemoryGraph(64)
	s := &studio{
		graph:   g,
		plugins: effectchain.NewRegistry(),
	}

	if device == "" {
		device = "mic"
	}
	g.AddNode(device, effectchain.RoleDevice)

	for _, name := range pluginNames {
		s.plugins.MustRegister(effectchain.NewNodePlugin(name, g.AddNode(name, effectchain.RolePlugin)))
	}

	s.ep = effectchain.Endpoints{
		Tap:    g.AddNode("spectrum", effectchain.RoleSpectrumTap),
		Meter:  g.AddNode("meter", effectchain.RoleLevelMeter),
		Output: g.AddNode("output", effectchain.RoleOutput),
	}
	s.player = g.AddNode("player", effectchain.RoleStream)

	return s
}

// signalPath returns the names of the linked nodes in signal-flow order.
func (s *studio) signalPath() ([]string, error) {
	order, err := s.graph.Order()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(order))
	for _, id := range order {
		if n, ok := s.graph.Node(id); ok {
			names = append(names, n.Name)
		}
	}
	return names, nil
}

// play connects the client stream to the output and marks it active.
func (s *studio) play() error {
	id, err := s.graph.CreateLink(s.ep.Output, s.player)
	if err != nil {
		return err
	}
	return s.graph.SetLinkState(id, effectchain.LinkActive)
}
