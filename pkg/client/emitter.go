package client

import (
	"fmt"

	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

// Emitter is an interface for emitting results.
type Emitter interface {
	// OnStart is called before connecting to the server.
	OnStart(server string, params model.Params)
	// OnConnect is called when the TCP connection is established.
	OnConnect(server string)
	// OnProbe is called after each successful probe exchange.
	OnProbe(p model.ProbeResult)
	// OnResult is called when a session completes successfully.
	OnResult(r *model.Result)
	// OnSweepStart is called before the first session of a sweep.
	OnSweepStart(cfg SweepConfig, probes int)
	// OnSweepPoint is called after all the sessions for a sweep point.
	OnSweepPoint(p SweepPoint)
	// OnError is called on errors.
	OnError(err error)
	// OnDebug is called to print debug information.
	OnDebug(msg string)
}

// HumanReadable prints human-readable output to stdout.
// It can be configured to include debug output, too.
type HumanReadable struct {
	Debug bool
}

// OnStart prints the session parameters and server.
func (e HumanReadable) OnStart(server string, params model.Params) {
	e.OnDebug(fmt.Sprintf("Starting %s session (server: %s, probes: %d, size: %d bytes, delay: %gs)",
		params.Kind, server, params.Probes, params.Size, params.Delay))
}

// OnConnect is called when the connection to the server is established.
func (e HumanReadable) OnConnect(server string) {
	e.OnDebug(fmt.Sprintf("Connected to %s", server))
}

// OnProbe is called after each probe.
func (e HumanReadable) OnProbe(p model.ProbeResult) {
	e.OnDebug(fmt.Sprintf("Probe %d: %d bytes, rtt %v, %.2f bytes/s",
		p.Seq, p.Bytes, p.RTT, p.Throughput))
}

// OnResult prints the session's mean RTT or throughput, depending on the
// measurement kind.
func (HumanReadable) OnResult(r *model.Result) {
	switch r.Params.Kind {
	case spec.KindThroughput:
		fmt.Printf("TPUT: %f bytes/s\n", r.AvgThroughput())
	default:
		fmt.Printf("RTT: %f s\n", r.AvgRTT().Seconds())
	}
}

// OnSweepStart prints the sweep configuration and the table header.
func (HumanReadable) OnSweepStart(cfg SweepConfig, probes int) {
	fmt.Printf("Experiment Mode\n")
	fmt.Printf("\tExperiments: %d\n", cfg.Experiments)
	fmt.Printf("\tNumber of Probes: %d\n", probes)
	fmt.Printf("\tServer Delay Increase: %f\n\n", cfg.DelayIncrease)
	fmt.Printf("Size\tRTT\tTPUT\tDelay\n")
}

// OnSweepPoint prints one row of the sweep table.
func (HumanReadable) OnSweepPoint(p SweepPoint) {
	fmt.Printf("%d\t%f\t%f\t%f\n", p.Size, p.AvgRTT.Seconds(), p.AvgThroughput, p.Delay)
}

// OnError is called on errors.
func (HumanReadable) OnError(err error) {
	fmt.Println(err)
}

// OnDebug is called to print debug information.
func (e HumanReadable) OnDebug(msg string) {
	if e.Debug {
		fmt.Printf("DEBUG: %s\n", msg)
	}
}

// Checks that HumanReadable implements Emitter.
var _ Emitter = &HumanReadable{}
