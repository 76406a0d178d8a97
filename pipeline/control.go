package pipeline

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	"github.com/cwbudde/algo-fxchain/dsp/spectrum"
	"github.com/cwbudde/algo-fxchain/internal/settings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func (p *Pipeline) handle(ev Event) {
	switch e := ev.(type) {
	case Attach:
		p.attach(e.Device)
	case Detach:
		p.detach()
	case DeviceChanged:
		p.deviceName = e.Name
		p.rewire()
	case SettingChanged:
		if err := p.applySetting(e.Key, e.Value); err != nil {
			p.log.WithFields(logrus.Fields{
				"function": "applySetting",
				"key":      e.Key,
				"error":    err.Error(),
			}).Warn("Ignoring setting")
			return
		}
		p.metrics.settingChanges.Inc()
	case Topology:
		p.topology(e.TopologyEvent)
	case ResetStatistics:
		p.stats.Reset()
	case flush:
		close(e.done)
	}
}

func (p *Pipeline) attach(device string) {
	if device != "" {
		p.deviceName = device
	}
	p.attached = true

	p.router.Sweep()
	p.rewire()
}

func (p *Pipeline) detach() {
	p.attached = false
	p.router.Teardown()
	p.playing.Store(false)
}

// resolveDevice finds the configured device node. The first device in the
// graph is the default; it is used when requested, when no name is
// configured, and when the configured device is missing. A fallback is
// adopted as the configured name.
func (p *Pipeline) resolveDevice() (effectchain.Node, bool) {
	var fallback effectchain.Node
	found := false
	for _, n := range p.graph.Nodes() {
		if n.Role != effectchain.RoleDevice {
			continue
		}
		if !found {
			fallback, found = n, true
		}
		if !p.useDefault && p.deviceName != "" && n.Name == p.deviceName {
			return n, true
		}
	}
	if !found {
		return effectchain.Node{}, false
	}

	if !p.useDefault && p.deviceName != "" {
		p.log.WithFields(logrus.Fields{
			"function":  "resolveDevice",
			"requested": p.deviceName,
			"default":   fallback.Name,
		}).Warn("Input device not found, using default")
		p.deviceName = fallback.Name
	}
	return fallback, true
}

// rewire applies the desired wiring. After a failure with a non-empty chain
// it retries once as passthrough; the desired chain is kept. When nothing
// can be wired the router is left unwired.
func (p *Pipeline) rewire() {
	if !p.attached {
		return
	}

	log := p.log.WithFields(logrus.Fields{
		"function": "rewire",
		"device":   p.deviceName,
		"chain":    p.chain,
		"bypass":   p.bypass,
	})

	node, ok := p.resolveDevice()
	if !ok {
		log.Warn("No input device, leaving chain unwired")
		p.router.Teardown()
		return
	}
	device := node.ID
	p.active.Store(&node.Name)

	err := p.reconfigure(p.chain, device)
	if err == nil {
		return
	}

	log.WithError(err).Error("Failed to wire filter chain")

	if p.fallback && !p.bypass && len(p.chain) > 0 {
		ferr := p.reconfigure(nil, device)
		if ferr == nil {
			log.Warn("Running passthrough after chain failure")
			return
		}
		log.WithError(ferr).Error("Passthrough fallback failed")
	}

	// A rejected request leaves the previous wiring in place.
	p.router.Teardown()
}

func (p *Pipeline) reconfigure(chain []string, device effectchain.NodeID) error {
	timer := prometheus.NewTimer(p.metrics.reconfigureTime)
	_, err := p.router.Reconfigure(chain, device, p.bypass)
	timer.ObserveDuration()
	p.metrics.observeReconfigure(err)

	return err
}

func (p *Pipeline) applySetting(key string, value any) error {
	switch key {
	case settings.KeySelectedPlugins:
		chain, ok := value.([]string)
		if !ok && value != nil {
			return typeError(key, value)
		}
		p.chain = slices.Clone(chain)
		p.rewire()
	case settings.KeyInputDevice:
		name, ok := value.(string)
		if !ok {
			return typeError(key, value)
		}
		p.deviceName = name
		p.rewire()
	case settings.KeyUseDefaultDevice:
		on, ok := value.(bool)
		if !ok {
			return typeError(key, value)
		}
		p.useDefault = on
		p.rewire()
	case settings.KeyBypass:
		on, ok := value.(bool)
		if !ok {
			return typeError(key, value)
		}
		p.bypass = on
		p.rewire()
	case settings.KeyMinimumFrequency, settings.KeyMaximumFrequency:
		hz, ok := asFloat(value)
		if !ok {
			return typeError(key, value)
		}
		minHz, maxHz := p.axisMin, p.axisMax
		if key == settings.KeyMinimumFrequency {
			minHz = hz
		} else {
			maxHz = hz
		}
		return p.updateAxis(minHz, maxHz, p.axisPoints)
	case settings.KeyNPoints:
		n, ok := asInt(value)
		if !ok {
			return typeError(key, value)
		}
		return p.updateAxis(p.axisMin, p.axisMax, n)
	case settings.KeyHistogramBins:
		n, ok := asInt(value)
		if !ok {
			return typeError(key, value)
		}
		if err := p.stats.UpdateHistogramBins(n); err != nil {
			return err
		}
		p.notifyBins(n)
	case settings.KeyWindowSize:
		n, ok := asInt(value)
		if !ok {
			return typeError(key, value)
		}
		return p.stats.Resize(n)
	case settings.KeyShow:
		on, ok := value.(bool)
		if !ok {
			return typeError(key, value)
		}
		p.enabled.Store(on)
	default:
		return fmt.Errorf("pipeline: unknown setting %q", key)
	}

	return nil
}

func (p *Pipeline) updateAxis(minHz, maxHz float64, points int) error {
	axis, err := spectrum.NewAxis(minHz, maxHz, points)
	if err != nil {
		return err
	}

	p.axisMin, p.axisMax, p.axisPoints = minHz, maxHz, points
	p.axis.Store(axis)

	return nil
}

// notifyBins replaces any unread notification with n.
func (p *Pipeline) notifyBins(n int) {
	select {
	case <-p.binsChanged:
	default:
	}

	select {
	case p.binsChanged <- n:
	default:
	}
}

func (p *Pipeline) topology(ev effectchain.TopologyEvent) {
	switch ev.Kind {
	case effectchain.NodeRemoved:
		if p.router.State() != effectchain.StateUnwired && p.router.Contains(ev.Node.ID) {
			p.log.WithFields(logrus.Fields{
				"function": "topology",
				"node":     ev.Node.Name,
				"role":     ev.Node.Role.String(),
			}).Warn("Wired node disappeared")
			p.router.Teardown()
			p.rewire()
		}
		// Links die with their node without a state event.
		p.playing.Store(p.outputActive())
	case effectchain.NodeAdded:
		if !p.attached || ev.Node.Role != effectchain.RoleDevice {
			return
		}
		unwired := p.router.State() == effectchain.StateUnwired
		returned := !p.useDefault && ev.Node.Name == p.deviceName && p.router.Device() != ev.Node.ID
		if unwired || returned {
			p.rewire()
		}
	case effectchain.LinkStateChanged:
		p.playing.Store(p.outputActive())
	}
}

// outputActive reports whether any active link leaves the output node.
func (p *Pipeline) outputActive() bool {
	out := p.cfg.Endpoints.Output
	for _, l := range p.graph.Links() {
		if l.Src == out && l.State == effectchain.LinkActive {
			return true
		}
	}
	return false
}

func typeError(key string, value any) error {
	return fmt.Errorf("pipeline: setting %q: unexpected type %T", key, value)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x == float64(int(x)) {
			return int(x), true
		}
	}
	return 0, false
}
