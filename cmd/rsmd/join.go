package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cuemby/rsmgr/pkg/statusserver"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Ask a running leader to add this node as a voter",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		addr, _ := cmd.Flags().GetString("addr")
		leader, _ := cmd.Flags().GetString("leader")

		body, err := json.Marshal(statusserver.JoinRequest{NodeID: nodeID, Address: addr})
		if err != nil {
			return fmt.Errorf("encode join request: %w", err)
		}

		resp, err := http.Post(fmt.Sprintf("http://%s/join", leader), "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("join request to %s: %w", leader, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("leader rejected join (status %d)", resp.StatusCode)
		}
		fmt.Printf("✓ Joined cluster via leader %s\n", leader)
		return nil
	},
}

func init() {
	joinCmd.Flags().String("node-id", "", "Node ID to register with the leader (required)")
	joinCmd.Flags().String("addr", "", "This node's raft bind address, as the leader should reach it (required)")
	joinCmd.Flags().String("leader", "127.0.0.1:8500", "Leader's status server address")
	joinCmd.MarkFlagRequired("node-id")
	joinCmd.MarkFlagRequired("addr")
}
