package main

import (
	"context"
	"flag"
	"net"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/m-lab/echoprobe/internal/handler"
	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
	"github.com/m-lab/echoprobe/pkg/version"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
)

var (
	flagEndpoint    = flag.String("addr", ":5991", "Listen address/port for echo1 connections")
	flagDataDir     = flag.String("datadir", "./data", "Directory to store data in")
	flagReadTimeout = flag.Duration("read-timeout", spec.DefaultReadTimeout, "Timeout for every read from a client")
	flagSessionTTL  = flag.Duration("session-ttl", spec.DefaultSessionTTL, "Maximum lifetime of a session")
	flagCC          = flag.String("cc", "", "Congestion control algorithm to set on accepted connections")
	flagDebug       = flag.Bool("debug", false, "Log every protocol phase")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	// Initialize logging and metrics.
	log.SetReportTimestamp(true)
	if *flagDebug {
		log.SetReportCaller(true)
		log.SetLevel(log.DebugLevel)
	}

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h := handler.New(*flagDataDir, *flagReadTimeout, *flagSessionTTL, *flagCC)
	defer h.Close()

	tcpl, err := net.Listen("tcp", *flagEndpoint)
	rtx.Must(err, "failed to create listener")
	l := netx.NewListener(tcpl.(*net.TCPListener))

	log.Info("About to listen for echo1 sessions", "endpoint", *flagEndpoint,
		"version", version.Version, "commit", prometheusx.GitShortCommit)
	err = h.Serve(ctx, l)
	log.Info("Server stopped", "reason", err)
}
