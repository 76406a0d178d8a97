package main

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStudio(t *testing.T) {
	s := newStudio("")

	dev, ok := s.graph.NodeByName("mic")
	require.True(t, ok)
	assert.Equal(t, effectchain.RoleDevice, dev.Role)

	assert.ElementsMatch(t, pluginNames, s.plugins.Names())
	for _, name := range pluginNames {
		_, ok := s.plugins.Lookup(name)
		assert.True(t, ok, name)
	}
	assert.Len(t, s.graph.Nodes(), 1+len(pluginNames)+4)
	assert.Empty(t, s.graph.Links())
}

func TestStudioPlay(t *testing.T) {
	s := newStudio("line-in")
	_, ok := s.graph.NodeByName("line-in")
	require.True(t, ok)

	require.NoError(t, s.play())
	links := s.graph.Links()
	require.Len(t, links, 1)
	assert.Equal(t, s.ep.Output, links[0].Src)
	assert.Equal(t, s.player, links[0].Dst)
	assert.Equal(t, effectchain.LinkActive, links[0].State)
}

func TestStudioSignalPath(t *testing.T) {
	s := newStudio("")
	mic, ok := s.graph.NodeByName("mic")
	require.True(t, ok)

	r := effectchain.NewRouter(s.graph, s.plugins, s.ep)
	_, err := r.Reconfigure([]string{"rnnoise", "equalizer"}, mic.ID, false)
	require.NoError(t, err)
	require.NoError(t, s.play())

	path, err := s.signalPath()
	require.NoError(t, err)
	assert.Equal(t, []string{"mic", "rnnoise", "equalizer", "spectrum", "meter", "output", "player"}, path)
}

func TestRenderToneWraps(t *testing.T) {
	const rate = 48000
	tone := renderTone(1000, rate, 0.5, rate+16)
	for i := range 16 {
		assert.InDelta(t, tone[i], tone[rate+i], 1e-9)
	}
	assert.InDelta(t, 0.5, maxAbs(tone), 1e-6)
}

func TestPeak(t *testing.T) {
	freq, db := peak([]float64{20, 200, 2000}, []float64{-90, -3, -40})
	assert.Equal(t, 200.0, freq)
	assert.Equal(t, -3.0, db)

	freq, db = peak(nil, nil)
	assert.True(t, math.IsNaN(freq))
	assert.True(t, math.IsInf(db, -1))
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
