// Package measurer samples kernel metrics of a connection while a session is
// running.
package measurer

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
	"github.com/m-lab/go/memoryless"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/ndt-server/tcpinfox"
)

type measurer struct {
	conn      netx.ConnInfo
	ticker    *memoryless.Ticker
	startTime time.Time

	dstChan chan model.Snapshot
}

// Start starts a measurer goroutine that periodically reads the tcp_info
// kernel struct for the connection, if available, and sends it wrapped in a
// Snapshot over the returned channel.
//
// The context determines the measurer goroutine's lifetime. The channel is
// closed when the goroutine exits.
func Start(ctx context.Context, conn netx.ConnInfo) <-chan model.Snapshot {
	// Implementation note: this channel must be buffered to account for slow
	// readers. Snapshots that do not fit are dropped. The buffer size
	// corresponds to at least 10 seconds:
	//
	// 10000ms / 100 ms/snapshot = 100 snapshots
	dst := make(chan model.Snapshot, 100)

	t, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      spec.MinMeasureInterval,
		Expected: spec.AvgMeasureInterval,
		Max:      spec.MaxMeasureInterval,
	})
	// This can only error if min/expected/max above are set to invalid
	// values. Since they are constants, we panic here.
	rtx.PanicOnError(err, "ticker creation failed (this should never happen)")

	m := &measurer{
		conn:      conn,
		ticker:    t,
		startTime: conn.AcceptTime(),
		dstChan:   dst,
	}
	if m.startTime.IsZero() {
		m.startTime = time.Now()
	}
	go m.loop(ctx)
	return dst
}

func (m *measurer) loop(ctx context.Context) {
	log.Debug("measurer: start")
	defer log.Debug("measurer: stop")
	defer close(m.dstChan)
	defer m.ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ticker.C:
			m.measure(ctx)
		}
	}
}

func (m *measurer) measure(ctx context.Context) {
	tcpInfo, err := m.conn.Info()
	if err != nil && !errors.Is(err, tcpinfox.ErrNoSupport) {
		log.Debug("cannot read tcp_info", "err", err)
	}
	if ctx.Err() != nil {
		return
	}
	select {
	case m.dstChan <- model.Snapshot{
		ElapsedTime: time.Since(m.startTime).Microseconds(),
		TCPInfo:     tcpInfo,
	}:
	default:
		log.Debug("measurer: snapshot dropped")
	}
}
