// Package main provides the playlistd entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/gaplessbox/internal/app/notification"
	"github.com/osa030/gaplessbox/internal/app/playback"
	"github.com/osa030/gaplessbox/internal/app/playlist"
	manifest "github.com/osa030/gaplessbox/internal/domain/playlist"
	"github.com/osa030/gaplessbox/internal/domain/track"
	"github.com/osa030/gaplessbox/internal/infra/config"
	"github.com/osa030/gaplessbox/internal/infra/encoder"
	"github.com/osa030/gaplessbox/internal/infra/logger"
	"github.com/osa030/gaplessbox/internal/infra/sink"
	"github.com/osa030/gaplessbox/internal/infra/source"
)

var (
	app        = kingpin.New("playlistd", "Gapless playlist streamer")
	configPath = app.Flag("config", "Path to config file").Default("config/playlist.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// list-sources command
	listSourcesCmd = app.Command("list-sources", "List supported track sources and exit")
)

func init() {
	// play command (default) - no need to store the command
	app.Command("play", "Play the configured tracks (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-sources command; the configured tracks are listed too when
	// the config loads
	if command == listSourcesCmd.FullCommand() {
		var m *manifest.Manifest
		if cfg, err := config.Load(*configPath); err == nil {
			m = cfg.Manifest()
		}
		printSources(os.Stdout, m)
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Playback error: %v", err)
		os.Exit(1)
	}
}

// run executes the main playback logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	format, err := cfg.Format()
	if err != nil {
		return errors.Wrap(err, "invalid output format")
	}

	pl, err := playlist.New[track.Info](playlist.Config{Format: format, FrameSize: cfg.Output.FrameSize})
	if err != nil {
		return errors.Wrap(err, "failed to create playlist")
	}
	defer pl.Close()

	out, err := sink.Open(cfg.Output.Sink.Type, cfg.Output.Sink.Path, format, encoder.Config{
		Bitrate:       cfg.Output.Sink.Opus.Bitrate,
		Complexity:    cfg.Output.Sink.Opus.Complexity,
		FrameDuration: cfg.OpusFrameDuration(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to open sink")
	}
	defer func() {
		if err := out.Close(); err != nil {
			zlog.Error().Msgf("Failed to close sink: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Subscribe before enqueueing so the first track's events are seen
	events := pl.CreateEventReceiver()
	go logEvents(ctx, events, pl)

	m := cfg.Manifest()
	sources, err := source.NewFromManifest(m)
	if err != nil {
		return errors.Wrap(err, "failed to build tracks")
	}
	for _, src := range sources {
		if _, err := pl.Enqueue(src.Loader, src.Info); err != nil {
			return errors.Wrap(err, "failed to enqueue track")
		}
	}
	infos := lo.Map(sources, func(src source.Source, _ int) track.Info {
		return src.Info
	})
	zlog.Info().Msgf("Playlist %q ready: tracks=%d types=%s duration=%s format=%s frame_size=%d sink=%s",
		cfg.Title, pl.Length(), strings.Join(m.Types(), ","), track.TotalDuration(infos),
		format, pl.GetFrameSize(), cfg.Output.Sink.Type)

	controller := playback.NewController(pl, out, playback.Config{
		Realtime:     cfg.Playback.Mode == config.ModeRealtime,
		PollInterval: cfg.PollInterval(),
		MaxIdlePolls: cfg.Playback.MaxIdlePolls,
	})
	go handleSignals(ctx, pl, controller)

	err = controller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		zlog.Info().Msg("Received shutdown signal...")
		return nil
	}
	return err
}

// logEvents logs playlist events until the receiver is closed or ctx is done.
func logEvents(ctx context.Context, events *notification.Receiver[playlist.Event], pl *playlist.Playlist[track.Info]) {
	for {
		e, err := events.Receive(ctx)
		if err != nil {
			return
		}
		switch ev := e.(type) {
		case playlist.SongBeganEvent[track.Info]:
			zlog.Info().Msgf("Now playing [%d/%d]: %s", ev.Index+1, pl.Length(), ev.AssociatedData.DisplayTitle())
		case playlist.SongAddedEvent[track.Info]:
			zlog.Debug().Msgf("Added [%d]: %s", ev.Index+1, ev.AssociatedData.DisplayTitle())
		case playlist.SongRemovedEvent:
			zlog.Info().Msgf("Removed [%d]", ev.Index+1)
		case playlist.PlaybackEndedEvent:
			zlog.Info().Msg("Playlist finished")
		}
	}
}

type navigator interface {
	GotoNextTrack()
	GotoPrevTrack()
}

type pauser interface {
	Pause() error
	Resume() error
}

// handleSignals applies control signals until ctx is done.
func handleSignals(ctx context.Context, nav navigator, p pauser) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTSTP, syscall.SIGCONT)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			applySignal(sig, nav, p)
		}
	}
}

// applySignal maps SIGUSR1 to the next track, SIGUSR2 to the previous one,
// SIGTSTP to pause and SIGCONT to resume.
func applySignal(sig os.Signal, nav navigator, p pauser) {
	switch sig {
	case syscall.SIGUSR1:
		zlog.Info().Msg("Skipping to next track")
		nav.GotoNextTrack()
	case syscall.SIGUSR2:
		zlog.Info().Msg("Going back to previous track")
		nav.GotoPrevTrack()
	case syscall.SIGTSTP:
		if err := p.Pause(); err != nil {
			zlog.Warn().Msgf("Cannot pause: %v", err)
		}
	case syscall.SIGCONT:
		if err := p.Resume(); err != nil {
			zlog.Debug().Msgf("Cannot resume: %v", err)
		}
	}
}

// printSources prints the supported source types and, when m is not nil, the
// configured tracks.
func printSources(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w, "Available Sources:")
	descriptions := map[string]string{
		"file":    "audio file (" + strings.Join(source.Extensions(), ", ") + ")",
		"raw":     "headerless little-endian PCM",
		"silence": "silence of a fixed duration",
		"tone":    "sine tone of a fixed duration",
	}
	for _, typ := range source.Types() {
		if m == nil {
			fmt.Fprintf(w, "  %-10s - %s\n", typ, descriptions[typ])
			continue
		}
		fmt.Fprintf(w, "  %-10s - %s (%d configured)\n", typ, descriptions[typ], len(m.OfType(typ)))
	}
	if m == nil {
		return
	}

	fmt.Fprintf(w, "\nConfigured Tracks (%s):\n", m.Name)
	for i, name := range m.DisplayNames() {
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "  %2d. [%s] %s\n", i+1, m.Entries[i].Type, name)
	}
}
