package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var migrateAPIPort int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Trigger a migration cycle",
	Long: `Queue a migration cycle on a running TierFS orchestrator.

The cycle runs asynchronously; use 'tierfs status' to watch its progress.
If a cycle is already running, the trigger is queued and runs once the
current cycle finishes.

Examples:
  # Trigger a cycle
  tierfs migrate

  # Trigger with custom API port
  tierfs migrate --api-port 9080`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateAPIPort, "api-port", 8080, "API server port")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/migration/trigger", migrateAPIPort)

	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("orchestrator is not running or the API is unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Println("Migration cycle queued")
	case http.StatusConflict:
		fmt.Println("A migration trigger is already queued")
	default:
		return fmt.Errorf("unexpected response: %d %s", resp.StatusCode, body["status"])
	}

	return nil
}
