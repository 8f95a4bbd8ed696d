package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/pkg/echo1"
	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
	"github.com/m-lab/echoprobe/pkg/version"
	"github.com/m-lab/locate/api/locate"
	v2 "github.com/m-lab/locate/api/v2"
)

const (
	// DefaultProbes is the default number of probes per session.
	DefaultProbes = 100

	// DefaultTimeout is the default connect and read timeout.
	DefaultTimeout = spec.DefaultReadTimeout

	libraryName = "echoprobe-client"
)

var (
	// ErrNoTargets is returned if all Locate targets have been tried.
	ErrNoTargets = errors.New("no targets available")

	libraryVersion = version.Version
)

// Locator is an interface used to get a list of available servers to test against.
type Locator interface {
	Nearest(ctx context.Context, service string) ([]v2.Target, error)
}

// Echo1Client is a client for the echo1 protocol.
type Echo1Client struct {
	// ClientName is the name of the client sent to the Locate API as part of
	// the user-agent.
	ClientName string
	// ClientVersion is the version of the client sent to the Locate API as
	// part of the user-agent.
	ClientVersion string

	config Config

	dialer  *net.Dialer
	locator Locator

	// targets and tIndex cache the results from the Locate API.
	targets []v2.Target
	tIndex  int
	// server is the Locate target used by the last session, if any. It is
	// reused until a dial to it fails.
	server string
}

// makeUserAgent creates the user agent string.
func makeUserAgent(clientName, clientVersion string) string {
	return clientName + "/" + clientVersion + " " + libraryName + "/" + libraryVersion
}

// New returns a new Echo1Client with the provided client name, version and
// config. Zero values in config are replaced with defaults. It panics if
// clientName or clientVersion are empty.
func New(clientName, clientVersion string, config Config) *Echo1Client {
	if clientName == "" || clientVersion == "" {
		panic("client name and version must be non-empty")
	}
	if config.Kind == "" {
		config.Kind = spec.KindRTT
	}
	if config.Probes == 0 {
		config.Probes = DefaultProbes
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Emitter == nil {
		config.Emitter = HumanReadable{}
	}
	return &Echo1Client{
		ClientName:    clientName,
		ClientVersion: clientVersion,

		config: config,
		dialer: &net.Dialer{Timeout: config.Timeout},

		locator: locate.NewClient(makeUserAgent(clientName, clientVersion)),
	}
}

// Params returns the session parameters described by the client's config.
func (c *Echo1Client) Params() model.Params {
	return model.Params{
		Kind:   c.config.Kind,
		Probes: c.config.Probes,
		Size:   c.config.Size,
		Delay:  c.config.Delay,
	}
}

// nextServerFromLocate returns the next server to try from the Locate API.
// If it's the first time we're calling this function, it contacts the Locate
// API. Subsequently, it returns the next server from the cache.
// If there are no more servers to try, it returns ErrNoTargets.
func (c *Echo1Client) nextServerFromLocate(ctx context.Context) (string, error) {
	if len(c.targets) == 0 {
		targets, err := c.locator.Nearest(ctx, spec.ServiceName)
		if err != nil {
			return "", err
		}
		// cache targets on success.
		c.targets = targets
	}
	for c.tIndex < len(c.targets) {
		t := c.targets[c.tIndex]
		c.tIndex++
		u, err := url.Parse(t.URLs[spec.LocateURLKey])
		if err != nil || u.Host == "" {
			c.config.Emitter.OnDebug(fmt.Sprintf("skipping target %s: no %s URL",
				t.Machine, spec.LocateURLKey))
			continue
		}
		if u.Port() == "" {
			return net.JoinHostPort(u.Hostname(), fmt.Sprint(spec.DefaultPort)), nil
		}
		return u.Host, nil
	}
	return "", ErrNoTargets
}

// connect dials the configured server. Otherwise, it dials the Locate
// target used by the previous session, or the next Locate targets in order
// until one accepts the connection.
func (c *Echo1Client) connect(ctx context.Context) (*netx.Conn, error) {
	if c.config.Server != "" {
		c.config.Emitter.OnDebug(fmt.Sprintf("using server provided via flags %s", c.config.Server))
		return c.dial(ctx, c.config.Server)
	}
	if c.server != "" {
		c.config.Emitter.OnDebug(fmt.Sprintf("using server from locate %s", c.server))
		conn, err := c.dial(ctx, c.server)
		if err == nil {
			return conn, nil
		}
		c.config.Emitter.OnError(err)
		c.server = ""
	}
	c.config.Emitter.OnDebug("using locate")
	for {
		server, err := c.nextServerFromLocate(ctx)
		if err != nil {
			return nil, err
		}
		conn, err := c.dial(ctx, server)
		if err == nil {
			c.server = server
			return conn, nil
		}
		c.config.Emitter.OnError(err)
	}
}

func (c *Echo1Client) dial(ctx context.Context, server string) (*netx.Conn, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", server)
	if err != nil {
		return nil, err
	}
	return netx.FromTCPConn(conn.(*net.TCPConn))
}

// Measure runs a single session with the configured parameters. On
// failure, the returned Result holds the probes completed before the error.
func (c *Echo1Client) Measure(ctx context.Context) (*model.Result, error) {
	return c.measure(ctx, c.Params())
}

func (c *Echo1Client) measure(ctx context.Context, params model.Params) (*model.Result, error) {
	if err := params.Validate(); err != nil {
		err = &echo1.SessionError{Phase: spec.PhaseSetup, Kind: echo1.ErrInvalidParams, Err: err}
		c.config.Emitter.OnError(err)
		return &model.Result{Params: params}, err
	}
	target := c.config.Server
	if target == "" {
		target = "locate"
	}
	c.config.Emitter.OnStart(target, params)
	conn, err := c.connect(ctx)
	if err != nil {
		err = &echo1.SessionError{Phase: spec.PhaseConnect, Kind: echo1.ErrConnection, Err: err}
		c.config.Emitter.OnError(err)
		return &model.Result{Params: params}, err
	}
	server := conn.RemoteAddr().String()
	c.config.Emitter.OnConnect(server)

	var opts []echo1.ClientOption
	if c.config.LegacyDelay {
		opts = append(opts, echo1.WithLegacyDelay())
	}
	session := echo1.NewClientSession(conn, params, c.config.Timeout, opts...)
	defer session.Close()

	start := time.Now()
	result, err := session.Run(ctx)
	result.MeasurementID = uuid.NewString()
	result.StartTime = start
	for _, p := range result.Probes {
		c.config.Emitter.OnProbe(p)
	}
	read, written := conn.ByteCounters()
	c.config.Emitter.OnDebug(fmt.Sprintf("session %s with %s: %d bytes sent, %d bytes received",
		result.MeasurementID, server, written, read))
	if err != nil {
		c.config.Emitter.OnError(err)
		return result, err
	}
	c.config.Emitter.OnResult(result)
	return result, nil
}
