package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
	)
	client := &apiClient{}

	rootCmd := &cobra.Command{
		Use:   "txstats-cli",
		Short: "Transaction statistics CLI tool",
		Long:  `A command line interface for interacting with the txstats API.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client.baseURL = baseURL
			client.apiKey = apiKey
			client.http = &http.Client{Timeout: timeout}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the txstats API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("TXSTATS_API_KEY"), "API key (defaults to $TXSTATS_API_KEY)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		statsCmd(client),
		recomputeCmd(client),
		clearCacheCmd(client),
		deleteAllCmd(client),
		ingestCmd(client),
		getCmd(client),
	)

	return rootCmd
}

func statsCmd(client *apiClient) *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show transaction statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/statistics"
			if taskID != "" {
				path += "?task_id=" + url.QueryEscape(taskID)
			}
			return client.call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, path, nil, http.StatusOK)
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "Read the snapshot cached for this recompute task")

	return cmd
}

func recomputeCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Queue a statistics recompute",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/api/v1/statistics/recompute", nil, http.StatusAccepted)
		},
	}
}

func clearCacheCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop every cached statistics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.call(cmd.Context(), io.Discard, http.MethodDelete, "/api/v1/statistics/cache", nil, http.StatusNoContent); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "statistics cache cleared")
			return nil
		},
	}
}

func deleteAllCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every stored transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.call(cmd.Context(), io.Discard, http.MethodDelete, "/api/v1/transactions", nil, http.StatusNoContent); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all transactions deleted")
			return nil
		},
	}
}

func ingestCmd(client *apiClient) *cobra.Command {
	var (
		id        string
		userID    string
		amount    string
		currency  string
		timestamp string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit a transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			ts := time.Now().UTC()
			if timestamp != "" {
				ts, err = time.Parse(time.RFC3339, timestamp)
				if err != nil {
					return fmt.Errorf("invalid timestamp %q: %w", timestamp, err)
				}
			}

			body := map[string]any{
				"transaction_id": id,
				"user_id":        userID,
				"amount":         amt,
				"currency":       currency,
				"timestamp":      ts,
			}
			return client.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/api/v1/transactions", body, http.StatusCreated)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Transaction ID")
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 150.50")
	cmd.Flags().StringVar(&currency, "currency", "USD", "Currency code")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "RFC 3339 timestamp (defaults to now)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func getCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stored transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/transactions/" + url.PathEscape(args[0])
			return client.call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, path, nil, http.StatusOK)
		},
	}
}

// call sends the request and pretty-prints the JSON response to out. Any
// status other than want is returned as an error carrying the body.
func (c *apiClient) call(ctx context.Context, out io.Writer, method, path string, payload any, want int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	if len(respBody) == 0 {
		return nil
	}

	return printJSON(out, respBody)
}

func printJSON(out io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = out.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}
