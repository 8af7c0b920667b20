package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/sardine-ai/go-remote-records/config"
	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sardine-ai/go-remote-records/wire"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	appName    = "recordsd"
	appVersion = "0.1.0"
)

// flags holds command line overrides. Empty values leave the loaded
// configuration alone.
type flags struct {
	configPath      string
	sources         string
	store           string
	addr            string
	authKey         string
	logLevel        string
	refreshInterval string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		logrus.WithError(err).Fatal("recordsd failed")
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Fetch records from remote origins, cache them locally and serve the latest snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), f)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&f.sources, "sources", "", "Comma separated name=url sources")
	rootCmd.PersistentFlags().StringVar(&f.store, "store", "", "Local store kind (memory, lru, file, postgres)")
	rootCmd.PersistentFlags().StringVarP(&f.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&f.addr, "addr", "", "Listen address")
	rootCmd.Flags().StringVar(&f.authKey, "auth-key", "", "Require this X-API-KEY on record endpoints")
	rootCmd.Flags().StringVarP(&f.refreshInterval, "refresh", "r", "", "Refresh interval, e.g. 30s (0 disables)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest records over HTTP (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), f)
		},
	}
	serveCmd.Flags().AddFlagSet(rootCmd.Flags())

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every source once and print the records as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchOnce(cmd.Context(), f, cmd.OutOrStdout())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, fetchCmd, versionCmd)
	return rootCmd
}

func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.sources != "" {
		sources, err := config.ParseSources(f.sources)
		if err != nil {
			return nil, err
		}
		cfg.Sources = sources
	}
	if f.store != "" {
		cfg.Store.Kind = f.store
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.authKey != "" {
		cfg.AuthKey = f.authKey
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.refreshInterval != "" {
		d, err := time.ParseDuration(f.refreshInterval)
		if err != nil {
			return nil, fmt.Errorf("--refresh: %w", err)
		}
		cfg.RefreshInterval = d
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func serve(ctx context.Context, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Server.Start(cfg.Addr)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logrus.Info("Shutting down")
		return app.Server.Shutdown()
	}
}

func fetchOnce(ctx context.Context, f *flags, out io.Writer) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := wire.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	names := make([]string, 0, len(app.Controllers))
	for name := range app.Controllers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := app.Controllers[name]
		if err := c.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		body, err := model.Encode(c.Data().Get())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n%s", name, body)
	}
	return nil
}
