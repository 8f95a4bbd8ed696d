package model

import (
	"time"

	"github.com/m-lab/echoprobe/pkg/version"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/tcp-info/tcp"
)

// ArchivalData is the archival data format for echo1 sessions. It is written
// by the server when a connection closes.
type ArchivalData struct {
	// GitShortCommit is the Git commit (short form) of the running server code.
	GitShortCommit string
	// Version is the symbolic version (if any) of the running server code.
	Version string

	// UUID is the unique identifier of the TCP connection.
	UUID string

	// Client is the client's ip:port pair.
	Client string
	// Server is the server's ip:port pair.
	Server string

	// StartTime is the connection's accept time.
	StartTime time.Time
	// EndTime is the time the connection was closed.
	EndTime time.Time

	// CongestionControl is the congestion control algorithm in use on the
	// server side, if known.
	CongestionControl string

	// Params are the negotiated parameters. They are zero if Setup failed.
	Params Params

	// ProbesEchoed is the number of probes echoed back to the client.
	ProbesEchoed int
	// State is "complete" if the session terminated normally, otherwise the
	// phase (setup, probe or terminate) where it failed.
	State string
	// Error is the reason the session ended early, if any.
	Error string `json:",omitempty"`

	// Snapshots are the TCP_INFO samples taken during the session.
	Snapshots []Snapshot
}

// Snapshot is a sample of kernel metrics for the session's socket.
type Snapshot struct {
	// ElapsedTime is the time since the connection was accepted
	// (microseconds).
	ElapsedTime int64
	// TCPInfo is the TCP_INFO struct, if available on this platform.
	TCPInfo *tcp.LinuxTCPInfo `json:",omitempty"`
}

// NewArchivalData returns an ArchivalData with the build metadata populated.
func NewArchivalData(uuid string, start time.Time) *ArchivalData {
	return &ArchivalData{
		GitShortCommit: prometheusx.GitShortCommit,
		Version:        version.Version,
		UUID:           uuid,
		StartTime:      start,
		Snapshots:      []Snapshot{},
	}
}
