// Command fxmon runs the effects pipeline on a simulated audio graph and
// logs the live spectrum and level statistics.
//
// A test tone is generated in real time and fed through the pipeline. The
// plugin chain, device and display settings come from an optional YAML file
// that is watched for changes.
//
// Examples:
//
//	fxmon --tone 440 --duration 10s
//	fxmon --config fxmon.yaml --metrics-addr :9100
//	fxmon --chain equalizer,rnnoise --backend gonum
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Version     bool          `short:"v" help:"Show version information"`
	Config      string        `short:"c" type:"path" help:"YAML settings file, watched for changes"`
	SampleRate  uint32        `default:"48000" help:"Stream sample rate in Hz"`
	FFTSize     int           `name:"fft-size" default:"8192" help:"Spectrum transform length (power of two)"`
	BlockSize   int           `default:"1024" help:"Frames per audio block"`
	Backend     string        `default:"algofft" enum:"algofft,gonum" help:"FFT backend (algofft, gonum)"`
	Window      string        `default:"hann" enum:"hann,hamming,blackman,rectangular" help:"Analysis window (hann, hamming, blackman, rectangular)"`
	Tone        float64       `default:"1000" help:"Test tone frequency in Hz"`
	Duration    time.Duration `default:"0s" help:"Stop after this long; 0 runs until interrupted"`
	MetricsAddr string        `help:"Serve Prometheus metrics on this address"`
	LogLevel    string        `default:"info" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	Chain       string        `help:"Comma separated plugin chain, overrides the settings file"`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("fxmon"),
		kong.Description("Effects chain and spectrum monitor"),
		kong.UsageOnError(),
	)

	if cli.Version {
		fmt.Println("fxmon", version)
		return
	}

	if err := run(cli); err != nil {
		fmt.Fprintln(os.Stderr, "fxmon:", err)
		os.Exit(1)
	}
}
