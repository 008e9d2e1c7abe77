// Package main provides the CLI entry point for cliprecorder.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/cliprecorder/pkg/adapters/chromesource"
	"github.com/user/cliprecorder/pkg/adapters/ffmpeglauncher"
	"github.com/user/cliprecorder/pkg/adapters/filesink"
	"github.com/user/cliprecorder/pkg/adapters/ggrenderer"
	"github.com/user/cliprecorder/pkg/adapters/logger"
	"github.com/user/cliprecorder/pkg/adapters/mp4probe"
	"github.com/user/cliprecorder/pkg/adapters/nullsink"
	"github.com/user/cliprecorder/pkg/adapters/osfilesystem"
	"github.com/user/cliprecorder/pkg/adapters/patternsource"
	"github.com/user/cliprecorder/pkg/config"
	"github.com/user/cliprecorder/pkg/ports"
	"github.com/user/cliprecorder/pkg/ppm"
	"github.com/user/cliprecorder/pkg/session"
	"github.com/user/cliprecorder/pkg/summarizer"
	"github.com/user/cliprecorder/pkg/upload"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "cliprecorder",
		Usage:   l10n.T("Record a rendered feed as uploaded video clips"),
		Version: version,
		Commands: []*cli.Command{
			recordCommand(),
			probeCommand(),
			versionCommand(),
		},
	}
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     l10n.T("Record until interrupted, encoding and uploading clips as they fill"),
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Configuration")},

			&cli.StringFlag{Name: "source", Usage: l10n.T("Render source (pattern, chrome)"), Category: l10n.T("Capture")},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Usage: l10n.T("Capture width"), Category: l10n.T("Capture")},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Usage: l10n.T("Capture height"), Category: l10n.T("Capture")},
			&cli.IntFlag{Name: "fps", Usage: l10n.T("Capture frame rate"), Category: l10n.T("Capture")},
			&cli.StringFlag{Name: "chrome-path", Usage: l10n.T("Path to Chrome executable"), Category: l10n.T("Capture")},
			&cli.BoolFlag{Name: "no-headless", Usage: l10n.T("Run browser in non-headless mode"), Category: l10n.T("Capture")},

			&cli.IntFlag{Name: "output-width", Usage: l10n.T("Encoded video width"), Category: l10n.T("Encoding")},
			&cli.IntFlag{Name: "output-height", Usage: l10n.T("Encoded video height"), Category: l10n.T("Encoding")},
			&cli.IntFlag{Name: "clip-seconds", Usage: l10n.T("Length of each clip in seconds"), Category: l10n.T("Encoding")},
			&cli.IntFlag{Name: "bitrate", Usage: l10n.T("Video bitrate in kbps"), Category: l10n.T("Encoding")},
			&cli.StringFlag{Name: "ffmpeg-path", Usage: l10n.T("Path to ffmpeg executable"), Category: l10n.T("Encoding")},
			&cli.StringFlag{Name: "root", Usage: l10n.T("Directory holding the temp folder"), Category: l10n.T("Encoding")},
			&cli.BoolFlag{Name: "keep-artifacts", Usage: l10n.T("Keep clip directories after upload"), Category: l10n.T("Encoding")},
			&cli.BoolFlag{Name: "finalize-on-stop", Usage: l10n.T("Encode the partial clip when recording stops"), Category: l10n.T("Encoding")},

			&cli.StringFlag{Name: "api-key", Usage: l10n.T("API key sent with uploads"), Category: l10n.T("Upload")},
			&cli.StringFlag{Name: "video-endpoint", Usage: l10n.T("Control endpoint for video uploads"), Category: l10n.T("Upload")},
			&cli.StringFlag{Name: "thumbnail-endpoint", Usage: l10n.T("Control endpoint for thumbnail uploads"), Category: l10n.T("Upload")},

			&cli.DurationFlag{Name: "duration", Usage: l10n.T("Stop after this long (0 = until interrupted)"), Category: l10n.T("Session")},
			&cli.DurationFlag{Name: "drain-timeout", Value: time.Minute, Usage: l10n.T("How long to wait for encodes and uploads on exit"), Category: l10n.T("Session")},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Output session summary to file (Markdown, or JSON for .json paths)"), Category: l10n.T("Session")},

			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: l10n.T("Enable debug output"), Category: l10n.T("Debug")},
			&cli.StringFlag{Name: "debug-dir", Usage: l10n.T("Directory for debug output"), Category: l10n.T("Debug")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T("Logging")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
		},
		Action: runRecord,
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Show codec, fragments and duration of an encoded clip"),
		ArgsUsage: "<file.mp4>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(l10n.T("A video file argument is required"), 2)
			}
			info, err := mp4probe.New().Probe(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Println(l10n.F("Codec: %s", info.Codec))
			fmt.Println(l10n.F("Fragmented: %t (%d fragments)", info.Fragmented, info.Fragments))
			fmt.Println(l10n.F("Samples: %d", info.Samples))
			fmt.Println(l10n.F("Duration: %d ms", info.DurationMs))
			fmt.Println(l10n.F("Size: %d bytes", info.Size))
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Println(l10n.F("cliprecorder version %s", version))
			return nil
		},
	}
}

// loadConfig applies defaults, then the YAML file, then the environment,
// then flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if c.NArg() > 0 {
		cfg.URL = c.Args().First()
		if !c.IsSet("source") && !c.IsSet("config") {
			cfg.Source = config.SourceChrome
		}
	}

	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}

	setString("source", &cfg.Source)
	setInt("width", &cfg.CaptureWidth)
	setInt("height", &cfg.CaptureHeight)
	setInt("fps", &cfg.FrameRate)
	setString("chrome-path", &cfg.ChromePath)
	if c.IsSet("no-headless") {
		cfg.Headless = !c.Bool("no-headless")
	}
	setInt("output-width", &cfg.OutputWidth)
	setInt("output-height", &cfg.OutputHeight)
	setInt("clip-seconds", &cfg.ClipSeconds)
	setInt("bitrate", &cfg.BitrateKbps)
	setString("ffmpeg-path", &cfg.FFmpegPath)
	setString("root", &cfg.RootDir)
	setBool("keep-artifacts", &cfg.KeepArtifacts)
	setBool("finalize-on-stop", &cfg.FinalizeOnStop)
	setString("api-key", &cfg.APIKey)
	setString("video-endpoint", &cfg.VideoEndpoint)
	setString("thumbnail-endpoint", &cfg.ThumbnailEndpoint)
	setBool("debug", &cfg.Debug)
	setString("debug-dir", &cfg.DebugDir)
	setString("log-level", &cfg.LogLevel)

	return cfg, cfg.Validate()
}

func runRecord(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	outW, outH := cfg.OutputSize()
	encoder, err := ffmpeglauncher.New(log, ffmpeglauncher.Options{
		FFmpegPath:   cfg.FFmpegPath,
		FrameRate:    cfg.FrameRate,
		OutputWidth:  outW,
		OutputHeight: outH,
		BitrateKbps:  cfg.BitrateKbps,
		Timeout:      cfg.EncodeTimeout,
	})
	if err != nil {
		return err
	}

	backend, target, err := openBackend(ctx, cfg, renderer, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	var sink ports.DebugSink
	if cfg.Debug {
		sink = filesink.New(cfg.DebugDir, fs)
	} else {
		sink = nullsink.New()
	}

	uploader := upload.New(fs, log, upload.Options{
		VideoEndpoint:     cfg.VideoEndpoint,
		ThumbnailEndpoint: cfg.ThumbnailEndpoint,
		Timeout:           cfg.UploadTimeout,
	})

	sess := session.New(cfg.ToSessionConfig(), session.Deps{
		Backend:  backend,
		FS:       fs,
		Encoder:  encoder,
		Uploader: uploader,
		Prober:   mp4probe.New(),
		Renderer: renderer,
		Sink:     sink,
		Logger:   log,
	})
	defer sess.Close()

	if err := sess.CaptureSourceChanged(target); err != nil {
		return err
	}

	started := time.Now()
	if err := sess.StartRecording(); err != nil {
		return err
	}

	var deadline <-chan time.Time
	if d := c.Duration("duration"); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			sess.Update()
		}
	}

	sess.StopRecording()
	elapsed := time.Since(started)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), c.Duration("drain-timeout"))
	defer drainCancel()
	drainErr := sess.Drain(drainCtx)
	uploader.Wait()

	if path := c.String("summary"); path != "" {
		writeSummary(path, cfg, sess, target, elapsed, fs, log)
	}

	if drainErr != nil && !errors.Is(drainErr, context.DeadlineExceeded) {
		return drainErr
	}
	log.Info("Session %s finished", sess.SessionID())
	return nil
}

// openBackend creates the render backend named in cfg and the target to attach.
func openBackend(ctx context.Context, cfg config.Config, renderer ports.Renderer, log ports.Logger) (ports.RenderBackend, ports.RenderTarget, error) {
	switch cfg.Source {
	case config.SourceChrome:
		src := chromesource.New(renderer, log, chromesource.Options{
			ChromePath: cfg.ChromePath,
			Headless:   cfg.Headless,
			Width:      cfg.CaptureWidth,
			Height:     cfg.CaptureHeight,
		})
		if err := src.Launch(ctx); err != nil {
			return nil, "", err
		}
		return src, ports.RenderTarget(cfg.URL), nil
	default:
		caption := cfg.URL
		if caption == "" {
			caption = "cliprecorder " + version
		}
		return patternsource.New(renderer, log, patternsource.Options{}), ports.RenderTarget(caption), nil
	}
}

func writeSummary(path string, cfg config.Config, sess *session.Session, target ports.RenderTarget, elapsed time.Duration, fs ports.FileSystem, log ports.Logger) {
	outW, outH := cfg.OutputSize()
	stats := sess.Stats()
	reaped := sess.ReaperStats()
	writer := sess.WriterStats()
	frameSize := int64(len(ppm.Header(cfg.CaptureWidth, cfg.CaptureHeight)) + cfg.CaptureWidth*cfg.CaptureHeight*3)

	summary := summarizer.NewBuilder().
		WithSession(sess.SessionID()).
		WithSource(cfg.Source, string(target)).
		WithSettings(summarizer.Settings{
			CaptureWidth:  cfg.CaptureWidth,
			CaptureHeight: cfg.CaptureHeight,
			OutputWidth:   outW,
			OutputHeight:  outH,
			FrameRate:     cfg.FrameRate,
			ClipSeconds:   cfg.ClipSeconds,
			BitrateKbps:   cfg.BitrateKbps,
		}).
		WithResults(summarizer.Results{
			DurationMs:       elapsed.Milliseconds(),
			FramesWritten:    stats.FramesWritten,
			FramesRejected:   stats.FramesRejected,
			ReadbacksDropped: sess.ReadbacksDropped(),
			ClipsLaunched:    stats.ClipsLaunched,
			ClipsUploaded:    reaped.Uploaded,
			ClipsLost:        reaped.Lost,
			EncoderFailures:  reaped.Failed + stats.LaunchFailures,
			Thumbnails:       stats.Thumbnails,
			BytesWritten:     writer.Written * frameSize,
		}).
		Build()

	formatter := summarizer.FormatterFor(path,
		summarizer.WithTranslator(func(s string) string { return l10n.T(s) }),
		summarizer.WithVersion(version),
	)
	reportSummary(log, path, summarizer.NewWriter(formatter, fs).Write(path, summary))
}

// reportSummary logs the outcome of writing the summary. The logger
// translates the key, so path and err go in as arguments.
func reportSummary(log ports.Logger, path string, err error) {
	if err != nil {
		log.Error("Failed to write summary: %s", err)
		return
	}
	log.Info("Summary saved to %s", path)
}
