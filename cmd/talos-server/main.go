package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/talos-registry/talos-server/internal/app"
	"github.com/talos-registry/talos-server/internal/tools/common"
	"github.com/talos-registry/talos-server/internal/tools/keysmith"
	"github.com/talos-registry/talos-server/internal/tools/loadgen"
)

var version = "dev"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "talos-server",
		Short:        "Template registry and authentication server",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newServeCommand(), newLoadgenCommand(), keysmith.NewRootCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	// Local overrides only; real deployments configure through the environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return a.Run(ctx)
}

func newLoadgenCommand() *cobra.Command {
	var (
		baseURL     string
		profile     string
		duration    time.Duration
		rps         int
		concurrency int
		seed        int64
		ci          bool
	)
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate synthetic traffic against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadgen.Run(cmd.Context(), loadgen.Config{
				BaseURL:     baseURL,
				Profile:     profile,
				Duration:    duration,
				RPS:         rps,
				Concurrency: concurrency,
				Seed:        seed,
			})
			var details []string
			if res != nil {
				details = append(details, fmt.Sprintf("total=%d failures=%d", res.TotalRequests, res.Failures))
				for class, n := range res.StatusClasses {
					details = append(details, fmt.Sprintf("%s=%d", class, n))
				}
			}
			if ci {
				common.PrintCIResult(err == nil && (res == nil || res.Failures == 0), "loadgen", details, err)
			} else {
				for _, d := range details {
					fmt.Println(d)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", common.EnvOr("TALOS_BASE_URL", "http://localhost:8080"), "API base URL")
	cmd.Flags().StringVar(&profile, "profile", "mixed", "traffic profile: auth, templates or mixed")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "run duration")
	cmd.Flags().IntVar(&rps, "rps", 20, "target requests per second")
	cmd.Flags().IntVar(&concurrency, "concurrency", 6, "worker count")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().BoolVar(&ci, "ci", false, "machine-readable output")
	return cmd
}
