package pipeline

import "github.com/cwbudde/algo-fxchain/dsp/effectchain"

// Event is a control message handled on the pipeline goroutine.
type Event interface {
	event()
}

// Attach connects the pipeline to the named device and wires the chain.
// An empty name selects the first device in the graph.
type Attach struct {
	Device string
}

// Detach tears the wiring down.
type Detach struct{}

// SettingChanged carries one configuration key and its new value.
type SettingChanged struct {
	Key   string
	Value any
}

// DeviceChanged selects another input device by name.
type DeviceChanged struct {
	Name string
}

// Topology forwards a graph event.
type Topology struct {
	effectchain.TopologyEvent
}

// ResetStatistics clears the level statistics.
type ResetStatistics struct{}

type flush struct {
	done chan struct{}
}

func (Attach) event()          {}
func (Detach) event()          {}
func (SettingChanged) event()  {}
func (DeviceChanged) event()   {}
func (Topology) event()        {}
func (ResetStatistics) event() {}
func (flush) event()           {}
