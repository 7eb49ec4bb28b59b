package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/wcag-scrapper/internal/app"
	"github.com/samvad-hq/wcag-scrapper/internal/config"
	"github.com/samvad-hq/wcag-scrapper/internal/logger"
	"github.com/samvad-hq/wcag-scrapper/internal/manifest"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scrapper failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scrapper",
		Short:         "Fetch raw page bytes on behalf of a host environment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("user-agent", "", "User-Agent sent with every request")
	flags.String("ca-bundle-file", "", "extra PEM certificates to trust")

	root.AddCommand(newFetchCmd(), newServeCmd())
	return root
}

func newFetchCmd() *cobra.Command {
	var (
		out          string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "fetch [URL]",
		Short: "Fetch one URL to stdout, or every job in a manifest",
		Args: func(_ *cobra.Command, args []string) error {
			if manifestPath == "" && len(args) != 1 {
				return errors.New("fetch needs exactly one URL or --manifest")
			}
			if manifestPath != "" && len(args) != 0 {
				return errors.New("--manifest cannot be combined with a URL argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				if manifestPath != "" {
					jobs, err := manifest.Load(manifestPath)
					if err != nil {
						return fmt.Errorf("load manifest: %w", err)
					}
					return rt.RunManifest(ctx, jobs)
				}

				if out == "" || out == "-" {
					return rt.FetchTo(ctx, args[0], os.Stdout)
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				if err := rt.FetchTo(ctx, args[0], f); err != nil {
					f.Close()
					os.Remove(out)
					return err
				}
				return f.Close()
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the body to this file instead of stdout")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML/JSON file listing jobs to fetch")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer newline-delimited JSON scrape requests on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				return rt.Serve(ctx, os.Stdin, os.Stdout)
			})
		},
	}
	cmd.Flags().String("metrics-addr", "", "address to expose Prometheus metrics on, e.g. :9100")
	return cmd
}

// withRuntime loads config, sets up logging and the runtime, and runs fn until
// it returns or the process is signalled.
func withRuntime(cmd *cobra.Command, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	rt, err := app.NewRuntime(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize runtime", "error", err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoObj("scrapper starting", "command", cmd.Name())
	err = fn(ctx, rt)
	if ctx.Err() != nil {
		logger.WarnObj("scrapper interrupted", "command", cmd.Name())
	}
	return err
}
