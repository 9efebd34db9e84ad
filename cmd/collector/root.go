package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lol-match-crawler/internal/collector"
	"lol-match-crawler/internal/config"
	"lol-match-crawler/internal/db"
	"lol-match-crawler/internal/discord"
	"lol-match-crawler/internal/riot"
	"lol-match-crawler/internal/sample"
	"lol-match-crawler/internal/storage"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitConfig    = 2
	exitCancelled = 130
)

// exitError carries the exit code out of RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a terminal state to the process exit code.
func exitCode(state collector.State) int {
	switch state {
	case collector.StateCompleted, collector.StateExhausted:
		return exitOK
	case collector.StateCancelled:
		return exitCancelled
	default:
		return exitFailed
	}
}

// source is everything the command needs from the provider.
type source interface {
	collector.MatchSource
	seedResolver
	ValidateKey(ctx context.Context) (bool, error)
}

// newSource builds the provider client; tests point it at a local server.
var newSource = func(cfg *config.Config, logger *log.Entry) (source, error) {
	limits, err := cfg.Limits()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}
	opts := []riot.Option{
		riot.WithRoutes(cfg.Region, cfg.Platform),
		riot.WithLimits(limits...),
		riot.WithRetryPolicy(policy),
		riot.WithLogger(logger),
	}
	if len(cfg.Queues) == 1 {
		opts = append(opts, riot.WithHistoryQueue(cfg.Queues[0]))
	}
	return riot.NewClient(cfg.APIKey, opts...)
}

func newRootCmd() *cobra.Command {
	var configPath string
	flagCfg := config.Defaults()

	cmd := &cobra.Command{
		Use:   "lol-match-crawler",
		Short: "Collect ranked match samples by crawling Riot match history",
		Long: `lol-match-crawler walks the player/match graph breadth-first from one or more
seed players and writes one row per eligible match: bans, picks, spells,
runes and the winning side. It stops once --target samples are written or
no unvisited players remain.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path := config.LoadDotEnv(config.EnvPaths...); path != "" {
				log.Debugf("Loaded .env from %s", path)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			config.ApplyFlags(cmd.Flags(), cfg, flagCfg)
			if err := cfg.ResolveKey(); err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			if err := cfg.Validate(); err != nil {
				return &exitError{code: exitConfig, err: fmt.Errorf("invalid configuration:\n%w", err)}
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (default "+config.DefaultConfigPath()+")")
	config.BindFlags(cmd.Flags(), flagCfg)
	cmd.Flags().SortFlags = false
	return cmd
}

func setupLogging(cfg *config.Config) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.TimeOnly})
	log.SetLevel(log.InfoLevel)
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// run performs one crawl with a validated config and writes the summary to out.
func run(parent context.Context, cfg *config.Config, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	setupLogging(cfg)
	start := time.Now()

	ctx, cancel := collector.SetupSignalHandler(parent, nil)
	defer cancel()

	logger := log.WithField("component", "crawler")
	logger.Infof("Riot API key: %s", riot.MaskKey(cfg.APIKey))

	client, err := newSource(cfg, log.WithField("component", "riot"))
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	finish := func(res collector.Result, output string) error {
		printSummary(out, res, output)
		notify(cfg, res, output)
		code := exitCode(res.State)
		if code == exitOK {
			return nil
		}
		return &exitError{code: code, err: res.Err}
	}
	failed := func(err error) error {
		state := collector.StateFailed
		if ctx.Err() != nil {
			state = collector.StateCancelled
		}
		return finish(collector.Result{State: state, Target: cfg.Target, Err: err, Elapsed: time.Since(start)}, "")
	}

	if cfg.CheckKey {
		valid, err := client.ValidateKey(ctx)
		if err != nil {
			return failed(fmt.Errorf("validate API key: %w", err))
		}
		if !valid {
			return failed(riot.Err(riot.ErrAuthRejected, nil, "API key rejected, regenerate it at developer.riotgames.com"))
		}
		logger.Info("API key is valid")
	}

	seeds, err := resolveSeeds(ctx, client, cfg.Seeds, logger)
	if err != nil {
		return failed(err)
	}

	sink, output, err := openSinks(ctx, cfg, start)
	if err != nil {
		return &exitError{code: exitFailed, err: err}
	}

	prog := newProgress(cfg)
	spider, err := collector.NewSpider(client, sink, collector.SpiderConfig{
		Target:           cfg.Target,
		MaxDepth:         cfg.MaxDepth,
		MatchesPerPlayer: cfg.MatchesPerPlayer,
		Workers:          cfg.Workers,
		Policy:           sample.Policy{Queues: cfg.Queues, AllowRemakes: cfg.AllowRemakes},
		Logger:           log.WithField("component", "spider"),
		OnSample:         prog.update,
	})
	if err != nil {
		sink.Close()
		return &exitError{code: exitConfig, err: err}
	}

	prog.start()
	res := spider.Run(ctx, seeds)
	prog.stop()

	if err := sink.Close(); err != nil {
		logger.WithError(err).Error("Failed to close output")
		if res.State.Successful() {
			res.State = collector.StateFailed
			res.Err = err
		}
	}
	if fs := fileSink(sink); fs != nil {
		output = fs.Path()
	}
	return finish(res, output)
}

// openSinks opens the output file and, when configured, the database sink.
// The returned path is where the file sink writes.
func openSinks(ctx context.Context, cfg *config.Config, start time.Time) (storage.Sink, string, error) {
	format, err := storage.ParseFormat(cfg.Format)
	if err != nil {
		return nil, "", err
	}
	path := cfg.OutputPath(start)
	file, err := storage.OpenFile(path, format, storage.WithCompression(cfg.Compress))
	if err != nil {
		return nil, "", err
	}
	if cfg.SinkURL == "" {
		return file, path, nil
	}

	dbSink, err := db.Open(ctx, cfg.SinkURL, cfg.TursoAuth)
	if err != nil {
		return nil, "", errors.Join(fmt.Errorf("open sink %s: %w", redactURL(cfg.SinkURL), err), file.Close())
	}
	return storage.Multi{file, dbSink}, path, nil
}

func fileSink(s storage.Sink) *storage.FileSink {
	switch s := s.(type) {
	case *storage.FileSink:
		return s
	case storage.Multi:
		for _, inner := range s {
			if fs, ok := inner.(*storage.FileSink); ok {
				return fs
			}
		}
	}
	return nil
}

// notify posts the run summary to Discord. Failures are logged only.
func notify(cfg *config.Config, res collector.Result, output string) {
	if cfg.DiscordWebhook == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := discord.NewWebhookClient(cfg.DiscordWebhook).SendRunSummary(ctx, discord.RunSummary{
		State:      res.State.String(),
		Successful: res.State.Successful(),
		Samples:    res.Emitted,
		Target:     res.Target,
		Players:    res.PlayersExpanded,
		Runtime:    res.Elapsed,
		ErrorKind:  riot.Kind(res.Err),
		Output:     output,
		APIKey:     cfg.APIKey,
		FinishedAt: time.Now(),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to send Discord notification")
	}
}
