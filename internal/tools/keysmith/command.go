// Package keysmith is an operator CLI for the service key admin API.
package keysmith

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/talos-registry/talos-server/internal/tools/common"
	"github.com/talos-registry/talos-server/internal/tools/ui"
)

type options struct {
	baseURL  string
	adminKey string
	ci       bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "keysmith", Short: "Mint, list and revoke service keys"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", common.EnvOr("TALOS_BASE_URL", "http://localhost:8080"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.adminKey, "admin-key", os.Getenv("TALOS_ADMIN_KEY"), "service key with admin role")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newMintCommand(opts), newListCommand(opts), newRevokeCommand(opts))
	return cmd
}

func newMintCommand(opts *options) *cobra.Command {
	var (
		owner        string
		role         string
		scope        string
		expiresHours int
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a new service key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(opts, "keysmith mint", func(ctx context.Context) ([]string, error) {
				body := map[string]any{"owner": owner, "role": role, "scope": scope}
				if expiresHours > 0 {
					body["expiresInHours"] = expiresHours
				}
				var resp struct {
					Key struct {
						Key       string     `json:"key"`
						Owner     string     `json:"owner"`
						Role      string     `json:"role"`
						ExpiresAt *time.Time `json:"expiresAt"`
					} `json:"key"`
				}
				if err := call(ctx, opts, http.MethodPost, "/api/v1/admin/keys", body, &resp); err != nil {
					return nil, err
				}
				details := []string{
					"key " + resp.Key.Key,
					fmt.Sprintf("owner=%s role=%s", resp.Key.Owner, resp.Key.Role),
				}
				if resp.Key.ExpiresAt != nil {
					details = append(details, "expires "+resp.Key.ExpiresAt.Format(time.RFC3339))
				}
				return details, nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "key owner")
	cmd.Flags().StringVar(&role, "role", "user", "key role (user or admin)")
	cmd.Flags().StringVar(&scope, "scope", "", "optional scope label")
	cmd.Flags().IntVar(&expiresHours, "expires-hours", 0, "expiry in hours, 0 for none")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List service keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(opts, "keysmith list", func(ctx context.Context) ([]string, error) {
				var resp struct {
					Keys []struct {
						ID        uint       `json:"id"`
						Owner     string     `json:"owner"`
						Role      string     `json:"role"`
						IsActive  bool       `json:"is_active"`
						ExpiresAt *time.Time `json:"expires_at"`
					} `json:"keys"`
				}
				if err := call(ctx, opts, http.MethodGet, "/api/v1/admin/keys", nil, &resp); err != nil {
					return nil, err
				}
				details := make([]string, 0, len(resp.Keys))
				for _, k := range resp.Keys {
					line := fmt.Sprintf("id=%d owner=%s role=%s active=%t", k.ID, k.Owner, k.Role, k.IsActive)
					if k.ExpiresAt != nil {
						line += " expires=" + k.ExpiresAt.Format(time.RFC3339)
					}
					details = append(details, line)
				}
				if len(details) == 0 {
					details = []string{"no keys"}
				}
				return details, nil
			})
		},
	}
}

func newRevokeCommand(opts *options) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a service key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(opts, "keysmith revoke", func(ctx context.Context) ([]string, error) {
				if err := call(ctx, opts, http.MethodPost, "/api/v1/admin/keys/revoke", map[string]string{"key": key}, nil); err != nil {
					return nil, err
				}
				return []string{"revoked"}, nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "full key value to revoke")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func runOp(opts *options, title string, fn func(context.Context) ([]string, error)) error {
	var (
		details []string
		err     error
	)
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		details, err = fn(ctx)
		common.PrintCIResult(err == nil, title, details, err)
	} else {
		details, err = ui.Run(title, fn)
		for _, d := range details {
			fmt.Println(d)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}
	return nil
}

func call(ctx context.Context, opts *options, method, path string, body, out any) error {
	if opts.adminKey == "" {
		return fmt.Errorf("admin key required (set --admin-key or TALOS_ADMIN_KEY)")
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, opts.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-api-key", opts.adminKey)

	resp, err := (&http.Client{Timeout: 20 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Code != "" {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
