package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/minggrim/ResourcePool/internal/bench"
	"github.com/minggrim/ResourcePool/pkg/config"
	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/observability"
)

var version = "1.0.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "resourcepool",
		Short: "resourcepool - Bounded resource pool benchmark tool",
		Long: `resourcepool benchmarks a bounded, thread-safe resource pool under
configurable contention. Workers acquire leased instances, hold them for a
configurable time, and release them back; the tool reports throughput, wait
percentiles, and construction outcomes.`,
	}

	root.AddCommand(versionCmd(), benchCmd(), configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("resourcepool v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func benchCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the acquire/release benchmark",
		Long: `Run the acquire/release benchmark against a pool built from the
configured workload. Configuration merges defaults, an optional YAML file,
RESOURCEPOOL_* environment variables, and flags, in ascending precedence.

Example:
  resourcepool bench --workers 16 --iterations 5000 --workload avro --report-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadToolConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runBench(cfg)
		},
	}

	defaults := config.NewToolConfig("bench")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	cmd.Flags().Int("idle-limit", defaults.Pool.IdleLimit, "Idle instances kept for reuse")
	cmd.Flags().Int("max-limit", defaults.Pool.MaxLimit, "Maximum simultaneously existing instances")
	cmd.Flags().String("workload", defaults.Workload.Kind, "Workload kind (sleep, avro)")
	cmd.Flags().Duration("construct-delay", defaults.Workload.ConstructDelay, "Simulated construction cost")
	cmd.Flags().Float64("failure-rate", defaults.Workload.FailureRate, "Fraction of constructions that fail (0.0-1.0)")
	cmd.Flags().Duration("hold-time", defaults.Workload.HoldTime, "How long each worker holds a lease")
	cmd.Flags().Int("workers", defaults.Bench.Workers, "Number of concurrent workers")
	cmd.Flags().Int("iterations", defaults.Bench.Iterations, "Acquire/release count per worker")
	cmd.Flags().Duration("acquire-timeout", defaults.Bench.AcquireTimeout, "Per-acquire timeout; 0 blocks indefinitely")
	cmd.Flags().String("report-format", defaults.Bench.ReportFormat, "Report output format (text, json)")
	cmd.Flags().String("report-path", defaults.Bench.ReportPath, "Write the report to a file instead of stdout")
	cmd.Flags().String("log-level", defaults.Observability.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().Bool("enable-metrics", defaults.Observability.EnableMetrics, "Enable metrics collection")
	cmd.Flags().Bool("enable-tracing", defaults.Observability.EnableTracing, "Emit trace spans around acquire and release")

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tool configuration",
	}
	cmd.AddCommand(configInitCmd(), configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("refusing to overwrite existing %s", path)
			}

			if err := config.Save(path, config.NewToolConfig("bench")); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "resourcepool.yaml", "Destination for the generated file")
	return cmd
}

func configShowCmd() *cobra.Command {
	var configFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadToolConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			var data []byte
			if asJSON {
				data, err = json.MarshalIndent(cfg, "", "  ")
			} else {
				data, err = yaml.Marshal(cfg)
			}
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON instead of YAML")
	return cmd
}

// flagBindings maps bench command flags onto their configuration keys.
var flagBindings = map[string]string{
	"idle-limit":      "pool.idle_limit",
	"max-limit":       "pool.max_limit",
	"workload":        "workload.kind",
	"construct-delay": "workload.construct_delay",
	"failure-rate":    "workload.failure_rate",
	"hold-time":       "workload.hold_time",
	"workers":         "bench.workers",
	"iterations":      "bench.iterations",
	"acquire-timeout": "bench.acquire_timeout",
	"report-format":   "bench.report_format",
	"report-path":     "bench.report_path",
	"log-level":       "observability.log_level",
	"enable-metrics":  "observability.enable_metrics",
	"enable-tracing":  "observability.enable_tracing",
}

// loadToolConfig merges defaults, an optional YAML config file,
// RESOURCEPOOL_* environment variables, and explicitly set flags, in
// ascending precedence.
func loadToolConfig(configFile string, flags *pflag.FlagSet) (*config.ToolConfig, error) {
	defaults := config.NewToolConfig("bench")

	v := viper.New()
	v.SetDefault("name", defaults.Name)
	v.SetDefault("version", defaults.Version)
	v.SetDefault("pool.idle_limit", defaults.Pool.IdleLimit)
	v.SetDefault("pool.max_limit", defaults.Pool.MaxLimit)
	v.SetDefault("workload.kind", defaults.Workload.Kind)
	v.SetDefault("workload.construct_delay", defaults.Workload.ConstructDelay)
	v.SetDefault("workload.failure_rate", defaults.Workload.FailureRate)
	v.SetDefault("workload.hold_time", defaults.Workload.HoldTime)
	v.SetDefault("bench.workers", defaults.Bench.Workers)
	v.SetDefault("bench.iterations", defaults.Bench.Iterations)
	v.SetDefault("bench.acquire_timeout", defaults.Bench.AcquireTimeout)
	v.SetDefault("bench.report_format", defaults.Bench.ReportFormat)
	v.SetDefault("bench.report_path", defaults.Bench.ReportPath)
	v.SetDefault("observability.enable_metrics", defaults.Observability.EnableMetrics)
	v.SetDefault("observability.enable_tracing", defaults.Observability.EnableTracing)
	v.SetDefault("observability.enable_logging", defaults.Observability.EnableLogging)
	v.SetDefault("observability.metrics_interval", defaults.Observability.MetricsInterval)
	v.SetDefault("observability.log_level", defaults.Observability.LogLevel)
	v.SetDefault("observability.tracing_sample_rate", defaults.Observability.TracingSampleRate)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("resourcepool")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("RESOURCEPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly set flags take precedence over file and environment;
	// untouched flags fall through to the lower layers.
	for flagName, key := range flagBindings {
		if f := flags.Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
			}
		}
	}

	cfg := config.NewToolConfig(v.GetString("name"))
	cfg.Version = v.GetString("version")
	cfg.Pool.IdleLimit = v.GetInt("pool.idle_limit")
	cfg.Pool.MaxLimit = v.GetInt("pool.max_limit")
	cfg.Workload.Kind = v.GetString("workload.kind")
	cfg.Workload.ConstructDelay = v.GetDuration("workload.construct_delay")
	cfg.Workload.FailureRate = v.GetFloat64("workload.failure_rate")
	cfg.Workload.HoldTime = v.GetDuration("workload.hold_time")
	cfg.Bench.Workers = v.GetInt("bench.workers")
	cfg.Bench.Iterations = v.GetInt("bench.iterations")
	cfg.Bench.AcquireTimeout = v.GetDuration("bench.acquire_timeout")
	cfg.Bench.ReportFormat = v.GetString("bench.report_format")
	cfg.Bench.ReportPath = v.GetString("bench.report_path")
	cfg.Observability.EnableMetrics = v.GetBool("observability.enable_metrics")
	cfg.Observability.EnableTracing = v.GetBool("observability.enable_tracing")
	cfg.Observability.EnableLogging = v.GetBool("observability.enable_logging")
	cfg.Observability.MetricsInterval = v.GetDuration("observability.metrics_interval")
	cfg.Observability.LogLevel = v.GetString("observability.log_level")
	cfg.Observability.TracingSampleRate = v.GetFloat64("observability.tracing_sample_rate")

	return cfg, nil
}

// runBench executes the benchmark described by cfg and renders the report.
func runBench(cfg *config.ToolConfig) error {
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: "json",
	}); err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	log := logger.Get().With(zap.String("component", "resourcepool-cli"))

	if cfg.Observability.EnableTracing {
		obsCfg := observability.DefaultConfig()
		obsCfg.Tracing.ServiceVersion = version
		obsCfg.Tracing.SamplingRate = cfg.Observability.TracingSampleRate
		if lvl, err := zapcore.ParseLevel(cfg.Observability.LogLevel); err == nil {
			obsCfg.Logging.Level = lvl
		}
		if err := observability.Initialize(obsCfg); err != nil {
			return fmt.Errorf("observability initialization failed: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.Shutdown(ctx); err != nil {
				log.Warn("observability shutdown failed", zap.Error(err))
			}
		}()
	}

	runner, err := bench.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("invalid benchmark configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting benchmark",
		zap.String("workload", cfg.Workload.Kind),
		zap.Int("workers", cfg.Bench.GetWorkers()),
		zap.Int("iterations", cfg.Bench.Iterations),
		zap.Int("idle_limit", cfg.Pool.IdleLimit),
		zap.Int("max_limit", cfg.Pool.EffectiveMaxLimit()))

	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	if cfg.Bench.ReportPath != "" {
		if err := report.Save(cfg.Bench.ReportPath, cfg.Bench.ReportFormat); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		log.Info("report written", zap.String("path", cfg.Bench.ReportPath))
		return nil
	}
	return report.WriteTo(os.Stdout, cfg.Bench.ReportFormat)
}
