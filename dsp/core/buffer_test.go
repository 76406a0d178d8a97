package core

import "testing"

func TestEnsureLenReuse(t *testing.T) {
	buf := make([]float64, 4, 8)

	out := EnsureLen(buf, 6)
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}

	if cap(out) != cap(buf) {
		t.Fatalf("cap = %d, want %d", cap(out), cap(buf))
	}
}

func TestEnsureLenGrow(t *testing.T) {
	out := EnsureLen(make([]float64, 2), 16)
	if len(out) != 16 {
		t.Fatalf("len = %d, want 16", len(out))
	}
}

func TestFill(t *testing.T) {
	buf := []float64{1, 2, 3}
	Fill(buf, -120)

	for i, v := range buf {
		if v != -120 {
			t.Fatalf("buf[%d] = %v, want -120", i, v)
		}
	}
}

func TestStreamOptions(t *testing.T) {
	cfg := ApplyStreamOptions(WithSampleRate(0), WithBlockSize(-1))
	if cfg != DefaultStreamConfig() {
		t.Fatalf("invalid options changed config: %+v", cfg)
	}

	cfg = ApplyStreamOptions(WithSampleRate(44100), WithBlockSize(441))
	if got := cfg.BlockSeconds(); !NearlyEqual(got, 0.01, 1e-12) {
		t.Fatalf("BlockSeconds() = %v, want 0.01", got)
	}
}
