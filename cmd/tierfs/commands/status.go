package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusAPIPort int
	statusOutput  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show orchestrator status",
	Long: `Display the current status of the TierFS orchestrator.

This command calls the operations API and reports tier readiness and the
migration scheduler state.

Examples:
  # Check status (uses default API port)
  tierfs status

  # Check status with custom API port
  tierfs status --api-port 9080

  # Output as JSON
  tierfs status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8080, "API server port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json)")
}

type readinessResponse struct {
	Ready  bool   `json:"ready"`
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

type migrationResponse struct {
	State   string     `json:"state"`
	NextRun *time.Time `json:"next_run,omitempty"`
	Last    *struct {
		FinishedAt  time.Time `json:"finished_at"`
		Transferred int       `json:"transferred"`
		Failed      int       `json:"failed"`
		Skipped     int       `json:"skipped"`
		BytesMoved  uint64    `json:"bytes_moved"`
	} `json:"last_cycle,omitempty"`
}

// orchestratorStatus is the combined status shown to the user.
type orchestratorStatus struct {
	Running   bool               `json:"running"`
	Ready     bool               `json:"ready"`
	Local     string             `json:"local,omitempty"`
	Remote    string             `json:"remote,omitempty"`
	Migration *migrationResponse `json:"migration,omitempty"`
	Message   string             `json:"message"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusOutput != "table" && statusOutput != "json" {
		return fmt.Errorf("invalid output format: %s (must be table or json)", statusOutput)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	base := fmt.Sprintf("http://localhost:%d", statusAPIPort)

	status := orchestratorStatus{Message: "Orchestrator is not running or the API is unreachable"}

	resp, err := client.Get(base + "/health/ready")
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var ready readinessResponse
		if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
			return fmt.Errorf("invalid readiness response: %w", err)
		}

		status.Running = true
		status.Ready = ready.Ready
		status.Local = ready.Local
		status.Remote = ready.Remote
		if ready.Ready {
			status.Message = "Orchestrator is running and both tiers are ready"
		} else {
			status.Message = "Orchestrator is running but not all tiers are ready"
		}

		if mresp, err := client.Get(base + "/migration"); err == nil {
			var migration migrationResponse
			if json.NewDecoder(mresp.Body).Decode(&migration) == nil {
				status.Migration = &migration
			}
			_ = mresp.Body.Close()
		}
	}

	if statusOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	printStatusTable(status)
	return nil
}

func printStatusTable(status orchestratorStatus) {
	fmt.Println()
	fmt.Println("TierFS Status")
	fmt.Println("=============")
	fmt.Println()

	switch {
	case status.Running && status.Ready:
		fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
	case status.Running:
		fmt.Printf("  Status:     \033[33m● Running (not ready)\033[0m\n")
	default:
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	if status.Running {
		fmt.Printf("  Local:      %s\n", status.Local)
		fmt.Printf("  Remote:     %s\n", status.Remote)
	}

	if m := status.Migration; m != nil && m.State != "" {
		fmt.Println()
		fmt.Printf("  Migration:  %s\n", m.State)
		if m.NextRun != nil {
			fmt.Printf("  Next run:   %s\n", m.NextRun.Local().Format(time.RFC1123))
		}
		if m.Last != nil {
			fmt.Printf("  Last cycle: %d transferred, %d failed, %d skipped (%s)\n",
				m.Last.Transferred, m.Last.Failed, m.Last.Skipped,
				m.Last.FinishedAt.Local().Format(time.RFC1123))
		}
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
