package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckTimeout int
	healthcheckURL     string
)

// healthcheckCmd backs the container HEALTHCHECK. Exit code 0 means
// ready, 1 unreachable or not ready, 2 an unparseable response.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check if the server is ready",
	RunE:  runHealthcheck,
}

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "readiness URL (default: http://localhost:{SERVER_PORT}/readyz)")
}

type readyzResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		url = fmt.Sprintf("http://localhost:%s/readyz", port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(2)
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
		return err
	}
	defer resp.Body.Close()

	var ready readyzResponse
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing readiness response: %v\n", err)
		os.Exit(2)
		return err
	}

	if resp.StatusCode != http.StatusOK || ready.Status != "ready" {
		fmt.Fprintf(os.Stderr, "Server status: %s (http %d)\n", ready.Status, resp.StatusCode)
		for check, result := range ready.Checks {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", check, result)
		}
		os.Exit(1)
		return fmt.Errorf("not ready: %s", ready.Status)
	}

	return nil
}
