package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/rideledger/internal/adapter/http/dto"
	"github.com/iho/rideledger/internal/adapter/http/middleware"
	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/auth"
)

// options are the persistent flags shared by every command.
type options struct {
	baseURL   string
	timeout   time.Duration
	accountID string
	role      string
	token     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "rideledger-cli",
		Short:        "RideLedger CLI tool",
		Long:         `A command line interface for operating the RideLedger wallet and order API.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the RideLedger API")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.StringVar(&opts.accountID, "account", "", "Account ID sent as "+middleware.AccountIDHeader+" when no token is given")
	flags.StringVar(&opts.role, "role", "", "Account role sent as "+middleware.AccountRoleHeader+" when no token is given")
	flags.StringVar(&opts.token, "token", os.Getenv("RIDELEDGER_TOKEN"), "Bearer token")

	rootCmd.AddCommand(
		ledgerCmd(opts),
		walletCmd(opts),
		orderCmd(opts),
		tokenCmd(),
	)

	return rootCmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every wallet from its entries and report discrepancies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var report dto.ReconciliationReportResponse
			status, err := newAPIClient(opts).getJSON(cmd.Context(), "/api/v1/ledger/reconcile", &report, http.StatusConflict)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status == http.StatusOK && report.LedgerConsistent {
				fmt.Fprintf(out, "Reconciliation PASSED: %d/%d accounts reconciled\n", report.ReconciledAccounts, report.TotalAccounts)
				return nil
			}

			fmt.Fprintf(out, "Reconciliation FAILED: %d/%d accounts reconciled\n", report.ReconciledAccounts, report.TotalAccounts)
			for _, d := range report.Discrepancies {
				fmt.Fprintf(out, "  %s recorded=%s calculated=%s difference=%s chain_broken=%v\n",
					d.AccountID, d.RecordedBalance, d.CalculatedBalance, d.Difference, d.ChainBroken)
			}
			return errors.New("ledger is inconsistent")
		},
	})

	return cmd
}

func walletCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet operations for the calling account",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "balance",
		Short: "Show the wallet balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var balance dto.BalanceResponse
			if _, err := newAPIClient(opts).getJSON(cmd.Context(), "/api/v1/accounts/me/balance", &balance); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", balance.AccountID, balance.Balance)
			return nil
		},
	})

	return cmd
}

func orderCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Order operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var order dto.OrderResponse
			if _, err := newAPIClient(opts).getJSON(cmd.Context(), "/api/v1/orders/"+args[0], &order); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), order)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch <id>",
		Short: "Follow an order until it completes or is cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient(opts).watch(cmd.Context(), "/api/v1/orders/"+args[0]+"/watch", func(event string, data []byte) error {
				if event == "error" {
					var e dto.ErrorResponse
					if err := json.Unmarshal(data, &e); err == nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "stream error: %s\n", e.Error)
					}
					return nil
				}

				var order dto.OrderResponse
				if err := json.Unmarshal(data, &order); err != nil {
					return fmt.Errorf("failed to parse order: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s v%d driver=%s\n",
					order.UpdatedAt.Format(time.RFC3339), order.Status, order.Version, order.DriverID)
				return nil
			})
		},
	})

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret    string
		accountID string
		role      string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Development token helpers",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed bearer token for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedRole := domain.Role(strings.ToLower(role))
			if !parsedRole.IsValid() {
				return domain.ErrInvalidRole
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(domain.Principal{AccountID: accountID, Role: parsedRole})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	issueCmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	issueCmd.Flags().StringVar(&role, "role", string(domain.RolePassenger), "Account role")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = issueCmd.MarkFlagRequired("account")

	cmd.AddCommand(issueCmd)
	return cmd
}

type apiClient struct {
	opts *options
	http *http.Client
}

func newAPIClient(opts *options) *apiClient {
	return &apiClient{opts: opts, http: &http.Client{}}
}

func (c *apiClient) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.opts.baseURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case c.opts.token != "":
		req.Header.Set("Authorization", "Bearer "+c.opts.token)
	case c.opts.accountID != "":
		req.Header.Set(middleware.AccountIDHeader, c.opts.accountID)
		if c.opts.role != "" {
			req.Header.Set(middleware.AccountRoleHeader, c.opts.role)
		}
	}
	return req, nil
}

// getJSON decodes a 2xx body into v. Statuses listed in also are decoded too.
func (c *apiClient) getJSON(ctx context.Context, path string, v any, also ...int) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, path)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= 300 && !slices.Contains(also, resp.StatusCode) {
		return resp.StatusCode, apiError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

// watch reads server-sent events until the end frame or EOF.
func (c *apiClient) watch(ctx context.Context, path string, handle func(event string, data []byte) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := c.newRequest(ctx, path)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if event == "end" {
				return nil
			}
			if err := handle(event, []byte(strings.TrimPrefix(line, "data: "))); err != nil {
				return err
			}
		case line == "":
			event = ""
		}
	}
	return scanner.Err()
}

func apiError(status int, body []byte) error {
	var e dto.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		if e.Message != "" {
			return fmt.Errorf("%s (status %d, %s): %s", e.Error, status, e.Kind, e.Message)
		}
		return fmt.Errorf("%s (status %d, %s)", e.Error, status, e.Kind)
	}
	return fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body)))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
