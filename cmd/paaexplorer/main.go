// Package main is the PAA Explorer entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	paacli "github.com/hyperjump/paaexplorer/internal/cli"
	"github.com/hyperjump/paaexplorer/internal/config"
	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/storage"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/paaexplorer/config.yaml"

const shutdownTimeout = 10 * time.Second

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists, built-in
// defaults are used. Returns the config and the path that was loaded, or "".
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	clientFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "server URL",
				Value:   "http://localhost:8080",
				EnvVars: []string{"PAAEXPLORER_SERVER"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token",
				Value:   "demo",
				EnvVars: []string{"PAAEXPLORER_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: text or json",
				Value:   "text",
			},
		}
	}

	configFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file path",
			Value:   defaultConfigPath,
		}
	}

	return &cli.App{
		Name:    "paaexplorer",
		Usage:   "Cluster \"People Also Ask\" questions by topic",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Run the HTTP API",
				Action: runServer,
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
					&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: "log level (debug, info, warn, error); overrides --debug"},
				},
			},
			{
				Name:      "submit",
				Usage:     "Submit an analysis for one or more keywords",
				ArgsUsage: "<keyword> [keyword...]",
				Action:    runSubmit,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "locale", Usage: "search locale", Value: models.DefaultLocale},
					&cli.StringFlag{Name: "algorithm", Usage: "kmeans or dbscan", Value: models.DefaultAlgorithm},
					&cli.IntFlag{Name: "max-questions", Usage: "questions per keyword", Value: models.DefaultItemsPerTopic},
					&cli.BoolFlag{Name: "wait", Usage: "wait for the job to finish and print its status"},
					&cli.DurationFlag{Name: "poll-interval", Usage: "status polling interval with --wait", Value: time.Second},
				}, clientFlags()...),
			},
			{
				Name:      "status",
				Usage:     "Show a job's status",
				ArgsUsage: "<job-id>",
				Action:    runStatus,
				Flags:     clientFlags(),
			},
			{
				Name:      "results",
				Usage:     "Show a completed job's clusters",
				ArgsUsage: "<job-id>",
				Action:    runResults,
				Flags:     clientFlags(),
			},
			{
				Name:   "quota",
				Usage:  "Show the caller's quota",
				Action: runQuota,
				Flags:  clientFlags(),
			},
			{
				Name:      "export",
				Usage:     "Download a job's results as csv, json or xlsx",
				ArgsUsage: "<job-id>",
				Action:    runExport,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, json or xlsx", Value: "csv"},
					&cli.StringFlag{Name: "file", Usage: "write to file instead of stdout"},
				}, clientFlags()...),
			},
			{
				Name:   "archive",
				Usage:  "List jobs archived to SQLite after eviction",
				Action: runArchive,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "user", Usage: "only jobs owned by this user id"},
					&cli.IntFlag{Name: "offset", Usage: "rows to skip"},
					&cli.IntFlag{Name: "limit", Usage: "rows to show", Value: 20},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output format: text or json", Value: "text"},
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintf(c.App.Writer, "paaexplorer version %s\n", version)
					return err
				},
			},
		},
	}
}

func runServer(c *cli.Context) error {
	cfg, resolvedPath, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || c.Bool("debug")
	logger, err := newLogger(c.String("log-level"), debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", debugMode),
		zap.String("retriever", cfg.Retriever.Mode),
		zap.String("embedding", cfg.Embedding.Provider),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := components.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return components.Evictor.Run(gctx, cfg.Jobs.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srvErr := components.Server.Stop(shutdownCtx)
		if err := components.Orchestrator.Shutdown(shutdownTimeout); err != nil {
			logger.Warn("worker pool release timed out", zap.Error(err))
		}
		return srvErr
	})
	return g.Wait()
}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	if level != "" {
		return utils.NewLoggerWithLevel(level)
	}
	return utils.NewLogger(debug)
}

func outputFormat(c *cli.Context) (paacli.OutputFormat, error) {
	return paacli.ParseOutputFormat(c.String("output"))
}

func client(c *cli.Context) *paacli.Client {
	return paacli.NewClient(c.String("server"), c.String("token"))
}

func jobIDArg(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.New("job id is required")
	}
	return id, nil
}

func runSubmit(c *cli.Context) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return errors.New("at least one keyword is required")
	}
	req := models.JobRequest{
		Topics:        c.Args().Slice(),
		Locale:        c.String("locale"),
		Algorithm:     c.String("algorithm"),
		ItemsPerTopic: c.Int("max-questions"),
	}
	api := client(c)
	jobID, err := api.Submit(c.Context, req)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	if !c.Bool("wait") {
		if format == paacli.OutputJSON {
			_, err := fmt.Fprintf(c.App.Writer, "{\"job_id\": %q}\n", jobID)
			return err
		}
		_, err := fmt.Fprintf(c.App.Writer, "Job queued: %s\n", jobID)
		return err
	}
	status, err := api.Wait(c.Context, jobID, c.Duration("poll-interval"))
	if err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return paacli.WriteStatus(c.App.Writer, status, format)
}

func runStatus(c *cli.Context) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}
	status, err := client(c).Status(c.Context, jobID)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	return paacli.WriteStatus(c.App.Writer, status, format)
}

func runResults(c *cli.Context) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}
	res, err := client(c).Results(c.Context, jobID)
	if err != nil {
		return fmt.Errorf("results failed: %w", err)
	}
	return paacli.WriteResults(c.App.Writer, res, format)
}

func runQuota(c *cli.Context) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	q, err := client(c).Quota(c.Context)
	if err != nil {
		return fmt.Errorf("quota failed: %w", err)
	}
	return paacli.WriteQuota(c.App.Writer, q, format)
}

func runExport(c *cli.Context) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}
	var w io.Writer = c.App.Writer
	if path := c.String("file"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := client(c).Export(c.Context, jobID, c.String("format"), w); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

func runArchive(c *cli.Context) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Storage.ArchivePath == "" {
		return errors.New("archiving is disabled: storage.archive_path is not set")
	}
	archive, err := storage.NewSQLiteArchive(cfg.Storage.ArchivePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx := c.Context
	listing := &paacli.ArchiveListing{}
	if listing.Total, err = archive.Count(ctx); err != nil {
		return err
	}
	if listing.Jobs, err = archive.List(ctx, c.String("user"), c.Int("offset"), c.Int("limit")); err != nil {
		return err
	}
	if size, err := archive.SizeBytes(); err == nil {
		listing.SizeBytes = size
	}
	return paacli.WriteArchive(c.App.Writer, listing, format)
}
