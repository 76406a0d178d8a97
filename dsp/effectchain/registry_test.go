package effectchain

import (
	"errors"
	"testing"
)

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	t.Run("valid registration", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		if err := r.Register(NewNodePlugin("equalizer", 3)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		p, ok := r.Lookup("equalizer")
		if !ok || p.NodeID() != 3 {
			t.Fatalf("Lookup = %v, %v", p, ok)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()

		if err := NewRegistry().Register(NewNodePlugin("", 3)); err == nil {
			t.Fatal("expected error for empty name")
		}
	})

	t.Run("nil plugin", func(t *testing.T) {
		t.Parallel()

		if err := NewRegistry().Register(nil); err == nil {
			t.Fatal("expected error for nil plugin")
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		r.MustRegister(NewNodePlugin("rnnoise", 4))

		err := r.Register(NewNodePlugin("rnnoise", 5))
		if !errors.Is(err, errDuplicatePlugin) {
			t.Fatalf("error = %v, want errDuplicatePlugin", err)
		}
	})
}

func TestRegistryMustRegisterPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()

	r := NewRegistry()
	r.MustRegister(NewNodePlugin("a", 1))
	r.MustRegister(NewNodePlugin("a", 2))
}

func TestRegistryNames(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(NewNodePlugin("equalizer", 3))
	r.MustRegister(NewNodePlugin("bass_enhancer", 4))

	names := r.Names()
	if len(names) != 2 || names[0] != "bass_enhancer" || names[1] != "equalizer" {
		t.Fatalf("Names = %v", names)
	}

	plugins := r.Plugins()
	if len(plugins) != 2 || plugins[0].Name() != "bass_enhancer" {
		t.Fatalf("Plugins = %v", plugins)
	}
}

func TestParseChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"equalizer", []string{"equalizer"}},
		{" equalizer , ,rnnoise ", []string{"equalizer", "rnnoise"}},
	}

	for _, tt := range tests {
		got := ParseChain(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("ParseChain(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("ParseChain(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}
