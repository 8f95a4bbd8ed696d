package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/echoprobe/pkg/client"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
	"github.com/m-lab/echoprobe/pkg/version"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
)

const (
	clientName = "echo-client"

	// defaultSize is the default payload size, in bytes.
	defaultSize = 1000
)

var (
	flagServer        = flag.String("server", "", "Server host[:port]. If empty, the server is found via the Locate API")
	flagProbes        = flag.Int("probes", client.DefaultProbes, "Number of probes per session")
	flagSize          = flag.Int("size", defaultSize, "Payload size of each probe (bytes)")
	flagDelay         = flag.Float64("delay", 0, "Server delay before each echo (seconds)")
	flagTimeout       = flag.Duration("timeout", client.DefaultTimeout, "Connect and read timeout")
	flagLegacyDelay   = flag.Bool("legacy-delay", false, "Send the delay with whole-second precision")
	flagExperiments   = flag.Int("experiments", 0, "Run in experiment mode with this many sessions per payload size")
	flagDelayIncrease = flag.Float64("delay-increase", 0, "Server delay used in the second pass of experiment mode (seconds)")
	flagSpacing       = flag.Duration("spacing", 0, "Expected pause between sessions in experiment mode")
	flagDebug         = flag.Bool("debug", false, "Print debug output")
	flagKind          = flagx.Enum{
		Options: []string{string(spec.KindRTT), string(spec.KindThroughput)},
		Value:   string(spec.KindRTT),
	}
)

func init() {
	flag.Var(&flagKind, "kind", "Measurement kind (rtt or tput)")
}

// serverAddr appends the default port to server if it has none.
func serverAddr(server string) string {
	if server == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, strconv.Itoa(spec.DefaultPort))
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cl := client.New(clientName, version.Version, client.Config{
		Server:      serverAddr(*flagServer),
		Kind:        spec.Kind(flagKind.Value),
		Probes:      *flagProbes,
		Size:        *flagSize,
		Delay:       *flagDelay,
		Timeout:     *flagTimeout,
		LegacyDelay: *flagLegacyDelay,
		Emitter:     client.HumanReadable{Debug: *flagDebug},
	})

	if *flagExperiments > 0 {
		_, err := cl.Sweep(ctx, client.SweepConfig{
			Experiments:   *flagExperiments,
			DelayIncrease: *flagDelayIncrease,
			Spacing:       *flagSpacing,
		})
		if err != nil {
			log.Error("experiment failed", "err", err)
			os.Exit(1)
		}
		return
	}

	p := cl.Params()
	fmt.Printf("Normal Mode\n")
	fmt.Printf("\tMeasurement type: %s\n", p.Kind)
	fmt.Printf("\tNumber of Probes: %d\n", p.Probes)
	fmt.Printf("\tMessage Size (bytes): %d\n", p.Size)
	fmt.Printf("\tServer Delay (s): %f\n", p.Delay)
	start := time.Now()
	if _, err := cl.Measure(ctx); err != nil {
		log.Error("measurement failed", "err", err, "elapsed", time.Since(start))
		os.Exit(1)
	}
}
