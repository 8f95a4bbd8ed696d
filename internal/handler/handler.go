// Package handler serves echo1 sessions on accepted TCP connections.
package handler

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jellydator/ttlcache/v3"
	"github.com/m-lab/echoprobe/internal/measurer"
	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/internal/persistence"
	"github.com/m-lab/echoprobe/pkg/echo1"
	"github.com/m-lab/echoprobe/pkg/echo1/model"
)

// Datatype is the datatype of echo1 archival files.
const Datatype = "echo1"

// Handler serves echo1 sessions. Every connection is handled on its own
// goroutine, and every session is bounded both by a per-read timeout and by
// a maximum lifetime.
type Handler struct {
	dataDir     string
	readTimeout time.Duration
	cc          string

	// sessions holds a cancel function for every running session, keyed by
	// connection UUID. Expired sessions are canceled.
	sessions *ttlcache.Cache[string, context.CancelFunc]
}

// New returns a Handler writing archival data to dataDir. Sessions are
// canceled after sessionTTL. If cc is not empty, the handler attempts to
// set this congestion control algorithm on every accepted connection.
func New(dataDir string, readTimeout, sessionTTL time.Duration, cc string) *Handler {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, context.CancelFunc](sessionTTL),
		ttlcache.WithDisableTouchOnHit[string, context.CancelFunc](),
	)
	cache.OnEviction(func(ctx context.Context,
		er ttlcache.EvictionReason,
		i *ttlcache.Item[string, context.CancelFunc]) {
		if er != ttlcache.EvictionReasonExpired {
			return
		}
		log.Info("Session lifetime exceeded", "uuid", i.Key())
		sessionsExpired.Inc()
		cancel := i.Value()
		cancel()
	})

	go cache.Start()
	return &Handler{
		dataDir:     dataDir,
		readTimeout: readTimeout,
		cc:          cc,
		sessions:    cache,
	}
}

// Close stops the session registry's expiration loop.
func (h *Handler) Close() {
	h.sessions.Stop()
}

// ActiveSessions returns the number of sessions currently running.
func (h *Handler) ActiveSessions() int {
	return h.sessions.Len()
}

// Serve accepts connections from ln until ctx is canceled or ln is closed.
// Connections must be accepted by a netx.Listener. Before returning, Serve
// waits for the sessions it started, which are canceled together with ctx.
func (h *Handler) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	var wg sync.WaitGroup
	defer wg.Wait()
	log.Info("Accepting echo1 connections...", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Error("accept failed", "err", err)
			acceptErrors.Inc()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandleConn(ctx, conn)
		}()
	}
}

// HandleConn serves a single session on conn, closes it and writes the
// session's archival data. It panics if conn was not returned by a
// netx.Listener.
func (h *Handler) HandleConn(ctx context.Context, conn net.Conn) {
	info := netx.ToConnInfo(conn)

	// Errors are not fatal: the requested algorithm might not be available
	// on this system. The algorithm actually in use is archived.
	if h.cc != "" {
		if err := info.SetCC(h.cc); err != nil {
			log.Info("Failed to set cc", "cc", h.cc, "err", err)
		}
	}
	uuid, err := info.UUID()
	if err != nil {
		// UUID() has a fallback that won't ever fail. This should not happen.
		log.Error("Failed to read UUID", "err", err)
		conn.Close()
		return
	}

	archive := model.NewArchivalData(uuid, info.AcceptTime())
	archive.Client = conn.RemoteAddr().String()
	archive.Server = conn.LocalAddr().String()
	archive.CongestionControl, _ = info.GetCC()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.sessions.Set(uuid, cancel, ttlcache.DefaultTTL)
	defer h.sessions.Delete(uuid)

	measurerCtx, stopMeasurer := context.WithCancel(ctx)
	snapshots := measurer.Start(measurerCtx, info)
	collected := make(chan []model.Snapshot, 1)
	go func() {
		s := []model.Snapshot{}
		for snap := range snapshots {
			s = append(s, snap)
		}
		collected <- s
	}()

	activeSessions.Inc()
	session := echo1.NewServerSession(conn, h.readTimeout)
	session.OnProbe = func(seq int, elapsed time.Duration) {
		probesEchoed.Inc()
		probeHoldTime.Observe(elapsed.Seconds())
	}
	err = session.Run(ctx)
	activeSessions.Dec()

	stopMeasurer()
	archive.Snapshots = <-collected
	conn.Close()
	archive.EndTime = time.Now()

	archive.Params = session.Params()
	archive.ProbesEchoed = session.ProbesEchoed()
	archive.State = "complete"
	if err != nil {
		archive.Error = err.Error()
		var serr *echo1.SessionError
		if errors.As(err, &serr) {
			archive.State = string(serr.Phase)
		}
		log.Info("Session failed", "uuid", uuid, "client", archive.Client,
			"state", archive.State, "err", err)
	} else {
		log.Debug("Session complete", "uuid", uuid, "client", archive.Client,
			"probes", archive.ProbesEchoed)
	}
	sessionsTotal.WithLabelValues(resultLabel(err)).Inc()
	h.writeArchive(archive)
}

func (h *Handler) writeArchive(archive *model.ArchivalData) {
	subtest := string(archive.Params.Kind)
	if subtest == "" {
		subtest = "invalid"
	}
	f, err := persistence.WriteDataFile(h.dataDir, Datatype, subtest, archive.UUID, archive)
	if err != nil {
		log.Error("failed to write echo1 result", "uuid", archive.UUID, "error", err)
		archiveErrors.Inc()
		return
	}
	log.Debug("echo1 result written", "path", f.Path, "size", f.Size)
}
