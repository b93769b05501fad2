package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cuemby/rsmgr/pkg/statusserver"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a node's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		resp, err := http.Get(fmt.Sprintf("http://%s/status", addr))
		if err != nil {
			return fmt.Errorf("status request to %s: %w", addr, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("node %s reported status %d", addr, resp.StatusCode)
		}

		var status statusserver.StatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("decode status response: %w", err)
		}

		fmt.Printf("Leader:          %v\n", status.Leader)
		if status.LeaderAddr != "" {
			fmt.Printf("Leader Address:  %s\n", status.LeaderAddr)
		}
		fmt.Printf("Last Applied:    %d\n", status.LastApplied)
		fmt.Printf("Sessions:        %d\n", status.SessionCount)
		fmt.Printf("Services:        %d\n", status.ServiceCount)
		fmt.Printf("Under High Load: %v\n", status.UnderHighLoad)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("addr", "127.0.0.1:8500", "Node's status server address")
}
