package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/rsmgr/pkg/clusterhost"
	"github.com/cuemby/rsmgr/pkg/log"
	"github.com/cuemby/rsmgr/pkg/logfacade"
	"github.com/cuemby/rsmgr/pkg/rsm"
	"github.com/cuemby/rsmgr/pkg/service/kv"
	"github.com/cuemby/rsmgr/pkg/snapshotstore"
	"github.com/cuemby/rsmgr/pkg/statusserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a node and, if bootstrapping, form a new single-node cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		statusAddr, _ := cmd.Flags().GetString("status-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		bootstrap, _ := cmd.Flags().GetBool("bootstrap")
		snapshotRetain, _ := cmd.Flags().GetInt("snapshot-retain")

		logger := log.WithComponent("rsmd")

		fmt.Println("Starting rsmd node...")
		fmt.Printf("  Node ID: %s\n", nodeID)
		fmt.Printf("  Raft Address: %s\n", bindAddr)
		fmt.Printf("  Status Address: %s\n", statusAddr)
		fmt.Printf("  Data Directory: %s\n", dataDir)

		logDir := dataDir + "/log"
		snapDir := dataDir + "/snapshots"
		raftDir := dataDir + "/raft"
		for _, dir := range []string{logDir, snapDir, raftDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data directory %s: %w", dir, err)
			}
		}

		logFacade, logStore, err := logfacade.Open(logDir)
		if err != nil {
			return fmt.Errorf("open log facade: %w", err)
		}

		snapStore, err := snapshotstore.Open(snapDir, snapshotRetain, logger)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}

		factory := func(serviceType string) (rsm.Service, error) {
			switch serviceType {
			case "kv":
				return kv.Factory(serviceType)
			default:
				return nil, fmt.Errorf("unknown service type %q", serviceType)
			}
		}

		manager, err := rsm.NewManager(rsm.DefaultConfig(), logFacade, snapStore, factory, logger)
		if err != nil {
			return fmt.Errorf("create service manager: %w", err)
		}

		host, err := clusterhost.New(clusterhost.Config{
			NodeID:   nodeID,
			BindAddr: bindAddr,
			DataDir:  raftDir,
		}, manager, logFacade, logStore, logger)
		if err != nil {
			return fmt.Errorf("create cluster host: %w", err)
		}

		if bootstrap {
			if err := host.Bootstrap(); err != nil {
				return fmt.Errorf("bootstrap cluster: %w", err)
			}
			fmt.Println("✓ Cluster bootstrapped")
		}

		srv := statusserver.New(host)
		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(statusAddr); err != nil {
				errCh <- fmt.Errorf("status server error: %w", err)
			}
		}()
		fmt.Printf("✓ Status endpoints: http://%s/{health,ready,status,join,metrics}\n", statusAddr)
		fmt.Println()
		fmt.Println("Node is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
		}

		if err := host.Close(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("node-id", "node-1", "Unique node ID")
	serveCmd.Flags().String("bind-addr", "127.0.0.1:7950", "Address for Raft communication")
	serveCmd.Flags().String("status-addr", "127.0.0.1:8500", "Address for the HTTP status server")
	serveCmd.Flags().String("data-dir", "./rsmd-data", "Data directory for log, snapshots, and raft state")
	serveCmd.Flags().Bool("bootstrap", false, "Bootstrap a new single-node cluster on startup")
	serveCmd.Flags().Int("snapshot-retain", 3, "Number of on-disk snapshots to retain")
}
