package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/activitytask/internal/adapters/server"
	servercommon "github.com/hylla/activitytask/internal/adapters/server/common"
	"github.com/hylla/activitytask/internal/adapters/storage/sqlite"
	"github.com/hylla/activitytask/internal/app"
	"github.com/hylla/activitytask/internal/config"
	"github.com/hylla/activitytask/internal/observability"
	"github.com/hylla/activitytask/internal/platform"
	"github.com/hylla/activitytask/internal/scenario"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root, err := newRootCommand(stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return err
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// rootOptions holds persistent flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	journalPath string
	appName     string
	devMode     bool
	stderr      io.Writer
}

// newRootCommand wires every subcommand under one root.
func newRootCommand(stderr io.Writer) (*cobra.Command, error) {
	bootstrap, err := config.LoadBootstrap(config.EnvPrefix)
	if err != nil {
		return nil, err
	}
	opts := &rootOptions{
		configPath: bootstrap.ConfigPath,
		appName:    bootstrap.AppName,
		devMode:    bootstrap.DevMode,
		stderr:     stderr,
	}

	root := &cobra.Command{
		Use:           "atask",
		Short:         "Activity and task launch-mode engine",
		Long:          "atask models how launch modes and intent flags place activity records into tasks.\nIt runs scripted scenarios locally and serves the engine over HTTP, websocket, and MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", opts.configPath, "path to config TOML")
	flags.StringVar(&opts.journalPath, "journal", "", "path to the sqlite lifecycle journal")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts),
		newManifestCommand(opts),
		newScenariosCommand(opts),
		newRunCommand(opts),
		newServeCommand(opts),
		newJournalCommand(opts),
	)
	return root, nil
}

// runtimeEnv is the resolved configuration of one command invocation.
type runtimeEnv struct {
	appName    string
	devMode    bool
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
}

// resolvePaths resolves per-user paths for the selected app name.
func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// open loads config, applies env and flag overrides, and starts logging.
func (o *rootOptions) open(command string) (*runtimeEnv, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return nil, err
	}
	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	cfg, err := config.Load(configPath, config.Default(paths.JournalPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg, err = cfg.ApplyEnv(config.EnvPrefix)
	if err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if journalPath := strings.TrimSpace(o.journalPath); journalPath != "" {
		cfg.Journal.Path = journalPath
		cfg.Journal.Enabled = true
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, paths.LogDir, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	env := &runtimeEnv{
		appName:    o.appName,
		devMode:    o.devMode,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
	}
	logger.Debug("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("configuration loaded", "config_path", configPath, "journal_path", cfg.Journal.Path, "journal_enabled", cfg.Journal.Enabled, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return env, nil
}

// Close releases the log sinks.
func (e *runtimeEnv) Close() {
	if err := e.logger.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// openJournal opens the sqlite journal when enabled. A nil journal means disabled.
func (e *runtimeEnv) openJournal() (*sqlite.Journal, error) {
	if !e.cfg.Journal.Enabled {
		e.logger.Debug("lifecycle journal disabled")
		return nil, nil
	}
	e.logger.Debug("opening sqlite journal", "path", e.cfg.Journal.Path)
	journal, err := sqlite.Open(e.cfg.Journal.Path)
	if err != nil {
		e.logger.Error("sqlite open failed", "path", e.cfg.Journal.Path, "err", err)
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	e.logger.Debug("sqlite journal ready", "path", e.cfg.Journal.Path, "session", journal.SessionID())
	return journal, nil
}

// newService builds an engine over the configured manifest.
func (e *runtimeEnv) newService(journal *sqlite.Journal, metrics app.Metrics) (*app.Service, error) {
	descs, err := e.cfg.Descriptors()
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}
	registry, err := app.NewDescriptorRegistry(descs)
	if err != nil {
		return nil, fmt.Errorf("build descriptor registry: %w", err)
	}
	svcCfg := app.ServiceConfig{
		Logger:      e.logger,
		Metrics:     metrics,
		EventBuffer: e.cfg.Engine.EventBuffer,
	}
	if journal != nil {
		svcCfg.Journal = journal
	}
	return app.NewService(registry, uuid.NewString, nil, svcCfg), nil
}

func (e *runtimeEnv) pollInterval() time.Duration {
	return time.Duration(e.cfg.Engine.PollIntervalMS) * time.Millisecond
}

func (e *runtimeEnv) waitTimeout() time.Duration {
	return time.Duration(e.cfg.Engine.WaitTimeoutMS) * time.Millisecond
}

// newPathsCommand prints the resolved per-user paths.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, scenario, journal, and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			configPath := opts.configPath
			if strings.TrimSpace(configPath) == "" {
				configPath = paths.ConfigPath
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", configPath)
			_, _ = fmt.Fprintf(out, "scenarios: %s\n", paths.ScenarioDir)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "journal: %s\n", paths.JournalPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// newManifestCommand renders the configured component manifest.
func newManifestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Show the component manifest the engine launches from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("manifest")
			if err != nil {
				return err
			}
			defer env.Close()
			descs, err := env.cfg.Descriptors()
			if err != nil {
				return fmt.Errorf("build manifest: %w", err)
			}
			renderManifest(cmd.OutOrStdout(), descs)
			return nil
		},
	}
}

// newScenariosCommand lists bundled and user scenarios.
func newScenariosCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List bundled scenarios and scenario files in the scenario directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, titleStyle.Render("builtin"))
			for _, name := range scenario.Builtins() {
				_, _ = fmt.Fprintf(out, "  %s\n", name)
			}
			files, err := filepath.Glob(filepath.Join(paths.ScenarioDir, "*.toml"))
			if err != nil {
				return fmt.Errorf("list scenario dir: %w", err)
			}
			if len(files) > 0 {
				_, _ = fmt.Fprintln(out, titleStyle.Render(paths.ScenarioDir))
				for _, file := range files {
					_, _ = fmt.Fprintf(out, "  %s\n", strings.TrimSuffix(filepath.Base(file), ".toml"))
				}
			}
			return nil
		},
	}
}

// newRunCommand runs scenarios, each against a fresh engine and journal session.
func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		all         bool
		snapshotDir string
	)
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios by file path, scenario-dir name, or builtin name",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := slices.Clone(args)
			if all {
				names = append(names, scenario.Builtins()...)
			}
			if len(names) == 0 {
				return errors.New("at least one scenario (or --all) is required")
			}

			env, err := opts.open("run")
			if err != nil {
				return err
			}
			defer env.Close()
			journal, err := env.openJournal()
			if err != nil {
				return err
			}
			if journal != nil {
				defer func() {
					if closeErr := journal.Close(); closeErr != nil {
						env.logger.Warn("sqlite close failed", "err", closeErr)
					}
				}()
			}

			out := cmd.OutOrStdout()
			for i, name := range names {
				sc, err := resolveScenario(env.paths.ScenarioDir, name)
				if err != nil {
					return err
				}
				// Each engine numbers its events from 1, so each run gets its own session.
				if journal != nil && i > 0 {
					if err := journal.StartSession(cmd.Context()); err != nil {
						return fmt.Errorf("start journal session: %w", err)
					}
				}
				svc, err := env.newService(journal, nil)
				if err != nil {
					return err
				}
				runner := scenario.NewRunner(svc, scenario.RunnerConfig{
					PollInterval: env.pollInterval(),
					WaitTimeout:  env.waitTimeout(),
					Logger:       env.logger,
				})
				env.logger.Info("scenario start", "name", sc.Name, "steps", len(sc.Steps))
				report, err := runner.Run(cmd.Context(), sc)
				if err != nil {
					_, _ = fmt.Fprintf(out, "FAIL %s\n", sc.Name)
					renderTasks(out, report.Tasks)
					env.logger.Error("scenario failed", "name", sc.Name, "err", err)
					return err
				}
				renderReport(out, report)
				env.logger.Info("scenario passed", "name", sc.Name)
				if snapshotDir != "" {
					path, err := writeSnapshot(snapshotDir, sc.Name, svc.Snapshot())
					if err != nil {
						return err
					}
					env.logger.Info("snapshot written", "name", sc.Name, "path", path)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every bundled scenario")
	cmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "write the final model of each scenario as JSON into this directory")
	return cmd
}

// writeSnapshot writes snap as indented JSON to dir/<name>.json.
func writeSnapshot(dir, name string, snap app.Snapshot) (string, error) {
	if err := snap.Validate(); err != nil {
		return "", fmt.Errorf("validate snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, sanitizeLogFileStem(name)+".json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot file: %w", err)
	}
	return path, nil
}

// resolveScenario prefers a file in dir named after name, then falls back to scenario.Load.
func resolveScenario(dir, name string) (scenario.Scenario, error) {
	if dir != "" && !strings.ContainsAny(name, `/\`) {
		candidate := filepath.Join(dir, strings.TrimSuffix(name, ".toml")+".toml")
		if _, err := os.Stat(candidate); err == nil {
			return scenario.Load(candidate)
		}
	}
	return scenario.Load(name)
}

// newServeCommand serves the engine over HTTP, websocket, MCP, and metrics.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		httpBind        string
		apiEndpoint     string
		mcpEndpoint     string
		metricsEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP, websocket, MCP, and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("serve")
			if err != nil {
				return err
			}
			defer env.Close()
			journal, err := env.openJournal()
			if err != nil {
				return err
			}
			if journal != nil {
				defer func() {
					if closeErr := journal.Close(); closeErr != nil {
						env.logger.Warn("sqlite close failed", "err", closeErr)
					}
				}()
			}

			metrics := observability.NewMetrics("atask")
			svc, err := env.newService(journal, metrics)
			if err != nil {
				return err
			}
			adapter := servercommon.NewAppServiceAdapter(svc,
				servercommon.WithPollInterval(env.pollInterval()),
				servercommon.WithWaitTimeout(env.waitTimeout()),
			)

			serverCfg := server.Config{
				HTTPBind:        firstNonEmpty(httpBind, env.cfg.Server.HTTP),
				APIEndpoint:     firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
				MCPEndpoint:     firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
				MetricsEndpoint: firstNonEmpty(metricsEndpoint, env.cfg.Server.MetricsEndpoint),
				ServerName:      env.appName,
				ServerVersion:   version,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env.logger.Info("command flow start", "command", "serve", "http", serverCfg.HTTPBind, "api", serverCfg.APIEndpoint, "mcp", serverCfg.MCPEndpoint)
			if err := serveCommandRunner(ctx, serverCfg, server.Dependencies{
				Engine:  adapter,
				Metrics: metrics.Handler(),
			}); err != nil {
				env.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			env.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (defaults to server.http)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	cmd.Flags().StringVar(&metricsEndpoint, "metrics-endpoint", "", "Prometheus metrics endpoint")
	return cmd
}

// newJournalCommand inspects the sqlite lifecycle journal.
func newJournalCommand(opts *rootOptions) *cobra.Command {
	var (
		sessionID    string
		activityID   string
		limit        int
		listSessions bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect journaled lifecycle events",
		Long:  "Without flags, prints the events of the most recent session that recorded any.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("journal")
			if err != nil {
				return err
			}
			defer env.Close()
			if !env.cfg.Journal.Enabled {
				return errors.New("the lifecycle journal is disabled")
			}
			journal, err := env.openJournal()
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := journal.Close(); closeErr != nil {
					env.logger.Warn("sqlite close failed", "err", closeErr)
				}
			}()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if activityID = strings.TrimSpace(activityID); activityID != "" {
				events, err := journal.ListActivityEvents(ctx, activityID)
				if err != nil {
					return fmt.Errorf("list activity events: %w", err)
				}
				renderEvents(out, events)
				return nil
			}

			sessions, err := journal.ListSessions(ctx, 0)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			// Opening the journal started a session of its own; hide it.
			sessions = slices.DeleteFunc(sessions, func(s sqlite.Session) bool {
				return s.ID == journal.SessionID()
			})
			if listSessions {
				renderSessions(out, sessions)
				return nil
			}
			if sessionID = strings.TrimSpace(sessionID); sessionID == "" {
				for _, s := range sessions {
					if s.EventCount > 0 {
						sessionID = s.ID
						break
					}
				}
			}
			if sessionID == "" {
				renderEvents(out, nil)
				return nil
			}
			events, err := journal.ListSessionEvents(ctx, sessionID, limit)
			if err != nil {
				return fmt.Errorf("list session events: %w", err)
			}
			_, _ = fmt.Fprintln(out, titleStyle.Render("session "+sessionID))
			renderEvents(out, events)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to list events for")
	cmd.Flags().StringVar(&activityID, "activity", "", "list every event of one activity record")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events to list")
	cmd.Flags().BoolVar(&listSessions, "sessions", false, "list sessions instead of events")
	return cmd
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
