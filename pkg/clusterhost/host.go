package clusterhost

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cuemby/rsmgr/pkg/log"
	"github.com/cuemby/rsmgr/pkg/logfacade"
	"github.com/cuemby/rsmgr/pkg/rsm"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

// Config configures a single Host node.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Host wires a *raft.Raft instance over the shared BoltDB-backed log store
// (opened once via pkg/logfacade and handed to both the rsm core and raft
// itself) plus raft's own file-based snapshot store for membership
// snapshots. The rsm ServiceManager does the actual work; Host only exists to
// stand consensus up underneath it.
type Host struct {
	cfg Config

	raft      *raft.Raft
	transport *raft.NetworkTransport
	fsm       *fsmAdapter
	manager   *rsm.ServiceManager
	logFacade *logfacade.Facade
	logger    zerolog.Logger
}

// New boots a *raft.Raft over cfg, wiring fsm as its FSM and logStore as both
// its LogStore and StableStore (the same store logFacade reads for
// compaction). It does not bootstrap or join a cluster; call Bootstrap or
// AddVoter (from the existing leader) next.
func New(cfg Config, manager *rsm.ServiceManager, logFacade *logfacade.Facade, logStore *raftboltdb.BoltStore, logger zerolog.Logger) (*Host, error) {
	logger = log.WithNodeID(logger, cfg.NodeID)

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	// Tuned for LAN/edge deployments rather than hashicorp raft's
	// WAN-conservative defaults, matching the teacher's manager construction.
	raftConfig.HeartbeatTimeout = 500 * time.Millisecond
	raftConfig.ElectionTimeout = 500 * time.Millisecond
	raftConfig.CommitTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("clusterhost: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("clusterhost: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("clusterhost: create snapshot store: %w", err)
	}

	fsm := newFSMAdapter(manager, logger)

	r, err := raft.NewRaft(raftConfig, fsm, logStore, logStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("clusterhost: create raft: %w", err)
	}

	return &Host{
		cfg:       cfg,
		raft:      r,
		transport: transport,
		fsm:       fsm,
		manager:   manager,
		logFacade: logFacade,
		logger:    logger,
	}, nil
}

// Bootstrap initializes a brand-new single-node cluster with this node as
// its only member. Call once, on the very first node only.
func (h *Host) Bootstrap() error {
	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(h.cfg.NodeID), Address: h.transport.LocalAddr()},
		},
	}

	future := h.raft.BootstrapCluster(configuration)
	if err := future.Error(); err != nil {
		return fmt.Errorf("clusterhost: bootstrap: %w", err)
	}
	return nil
}

// AddVoter adds a new node to the cluster's voter configuration. Must be
// called on the current leader; the new node should already be running (via
// New, without Bootstrap) and reachable at address.
func (h *Host) AddVoter(nodeID, address string) error {
	if !h.IsLeader() {
		return fmt.Errorf("clusterhost: not the leader, current leader: %s", h.LeaderAddr())
	}
	future := h.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("clusterhost: add voter: %w", err)
	}
	return nil
}

// RemoveServer removes a node from the cluster's configuration. Must be
// called on the current leader.
func (h *Host) RemoveServer(nodeID string) error {
	if !h.IsLeader() {
		return fmt.Errorf("clusterhost: not the leader, current leader: %s", h.LeaderAddr())
	}
	future := h.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("clusterhost: remove server: %w", err)
	}
	return nil
}

// IsLeader reports whether this node currently holds raft leadership.
func (h *Host) IsLeader() bool { return h.raft.State() == raft.Leader }

// LeaderAddr returns the address of the current raft leader, or "" if none
// is known.
func (h *Host) LeaderAddr() string {
	return string(h.raft.Leader())
}

// Stats mirrors raft.Raft.Stats() for the status server.
func (h *Host) Stats() map[string]string { return h.raft.Stats() }

// Manager exposes the underlying rsm ServiceManager so callers (the status
// server, client request handlers) can Apply/Compact through it directly.
func (h *Host) Manager() *rsm.ServiceManager { return h.manager }

// ApplyCommand proposes a command entry through raft, blocking until it is
// committed and applied, and returns the rsm OperationResult the FSM's Apply
// produced.
func (h *Host) ApplyCommand(data []byte, timeout time.Duration) (rsm.OperationResult, error) {
	if !h.IsLeader() {
		return rsm.OperationResult{}, fmt.Errorf("clusterhost: not the leader, current leader: %s", h.LeaderAddr())
	}
	future := h.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return rsm.OperationResult{}, fmt.Errorf("clusterhost: apply: %w", err)
	}
	switch v := future.Response().(type) {
	case rsm.OperationResult:
		return v, nil
	case error:
		return rsm.OperationResult{}, v
	default:
		return rsm.OperationResult{}, nil
	}
}

// Close shuts down raft and the shared log store.
func (h *Host) Close() error {
	if err := h.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("clusterhost: shutdown raft: %w", err)
	}
	h.manager.Close()
	if err := h.logFacade.Close(); err != nil {
		return fmt.Errorf("clusterhost: close log facade: %w", err)
	}
	return nil
}
