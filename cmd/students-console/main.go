// Command students-console manages student records against the students
// API from a terminal. Every read goes through the query cache and every
// write through the synchronization layer, exactly as the interactive shell
// does.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aanand-mishra/students-client/internal/api"
	"github.com/aanand-mishra/students-client/internal/config"
	"github.com/aanand-mishra/students-client/internal/logger"
	"github.com/aanand-mishra/students-client/internal/metrics"
	"github.com/aanand-mishra/students-client/internal/notify"
	"github.com/aanand-mishra/students-client/internal/query"
	"github.com/aanand-mishra/students-client/internal/studentsync"
)

var exampleUsage = strings.TrimSpace(`
  students-console list --search math
  students-console create --name "Ann Lee" --email ann@x.com --course Math --age 20
  students-console --api-url http://localhost:8085/api shell
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env is everything a command needs, built once the flags are parsed.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	cache   *query.Client
	store   *studentsync.Store
	metrics *http.Server
}

func newEnv(cfg *config.Config, out io.Writer) *env {
	log := logger.Setup(cfg.Env, os.Stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	transport := api.New(cfg.API.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		api.WithLogger(log),
		api.WithRateLimit(cfg.API.RequestsPerSecond),
	)

	cache := query.NewClient(
		query.WithLogger(log),
		query.WithRecorder(collector),
		query.WithStaleTime(cfg.Cache.StaleTime),
		query.WithGCTime(cfg.Cache.GCTime),
	)

	notifier := notify.Multi{notify.NewConsole(out), notify.Log{Logger: log}}

	e := &env{
		cfg:   cfg,
		log:   log,
		cache: cache,
		store: studentsync.New(transport, cache, notifier,
			studentsync.WithLogger(log),
			studentsync.WithRecorder(collector),
		),
	}

	if cfg.Metrics.Addr != "" {
		e.metrics = &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: metrics.SetupMetricsRoute(reg),
		}
		go func() {
			log.Info("serving metrics", slog.String("address", cfg.Metrics.Addr))
			if err := e.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	log.Debug("console ready",
		slog.String("api", transport.BaseURL()),
		slog.Duration("stale_time", cfg.Cache.StaleTime),
		slog.Duration("gc_time", cfg.Cache.GCTime),
	)

	return e
}

func (e *env) close() {
	e.cache.Close()

	if e.metrics != nil {
		if err := e.metrics.Shutdown(context.Background()); err != nil {
			e.log.Error("failed to stop metrics server", slog.String("error", err.Error()))
		}
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath     string
		apiURL      string
		metricsAddr string
		e           *env
	)

	root := &cobra.Command{
		Use:           "students-console",
		Short:         "Manage student records from the terminal",
		Example:       exampleUsage,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["api-url"] {
				cfg.API.BaseURL = apiURL
			}
			if changed["metrics-addr"] {
				cfg.Metrics.Addr = metricsAddr
			}

			e = newEnv(cfg, cmd.OutOrStdout())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	root.PersistentFlags().StringVar(&apiURL, "api-url", api.DefaultBaseURL, "students API base URL, including the /api prefix")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	envFn := func() *env { return e }
	root.AddCommand(
		newListCmd(envFn),
		newGetCmd(envFn),
		newCreateCmd(envFn),
		newUpdateCmd(envFn),
		newDeleteCmd(envFn),
		newShellCmd(envFn),
	)

	cobra.OnFinalize(func() {
		if e != nil {
			e.close()
			e = nil
		}
	})

	return root
}
