package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/samirrijal/routecast/internal/adapters/background"
	"github.com/samirrijal/routecast/internal/adapters/fitfile"
	"github.com/samirrijal/routecast/internal/adapters/http"
	"github.com/samirrijal/routecast/internal/adapters/memstore"
	"github.com/samirrijal/routecast/internal/adapters/raster"
	"github.com/samirrijal/routecast/internal/adapters/sink"
	"github.com/samirrijal/routecast/internal/adapters/sqlite"
	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
	"github.com/samirrijal/routecast/internal/core/usecases"
	"github.com/samirrijal/routecast/internal/pkg/config"
	"github.com/samirrijal/routecast/internal/pkg/logging"
)

const usage = `usage: render <command> [flags]

commands:
  image    render the full route onto the background as one image
  video    render the route progressively, one frame per point
  history  list recent local renders
  token    issue a bearer token for the render API`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load("routecast-render")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "image":
		err = runRender(ctx, cfg, logger, domain.RenderImage, os.Args[2:])
	case "video":
		err = runRender(ctx, cfg, logger, domain.RenderVideo, os.Args[2:])
	case "history":
		err = runHistory(ctx, cfg, os.Args[2:])
	case "token":
		err = runToken(cfg, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("render failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runRender(ctx context.Context, cfg *config.Config, logger *slog.Logger, kind domain.RenderKind, args []string) error {
	fs := flag.NewFlagSet(string(kind), flag.ExitOnError)
	fitPath := fs.String("fit", "", "FIT activity file")
	bgPath := fs.String("bg", "", "background image (png or jpeg)")
	out := fs.String("out", "", "output file")
	preset := fs.String("preset", "", "named render preset")
	cfgPath := fs.String("config", "", "JSON render config overlay")
	format := fs.String("format", "", "output format")
	framesDir := fs.String("frames-dir", "", "write video frames as a PNG sequence into this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fitPath == "" || *bgPath == "" {
		return fmt.Errorf("-fit and -bg are required")
	}
	if *out == "" && *framesDir == "" {
		return fmt.Errorf("one of -out or -frames-dir is required")
	}
	if *framesDir != "" && kind != domain.RenderVideo {
		return fmt.Errorf("-frames-dir only applies to video")
	}

	var override []byte
	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		override = b
	}
	renderCfg, err := usecases.ResolveConfig(kind, *preset, override)
	if err != nil {
		return err
	}

	fitFile, err := os.Open(*fitPath)
	if err != nil {
		return err
	}
	defer fitFile.Close()
	bgFile, err := os.Open(*bgPath)
	if err != nil {
		return err
	}
	defer bgFile.Close()

	history, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	var sinks ports.SinkFactory = sink.Factory{Quality: cfg.Render.JPEGQuality}
	if *framesDir != "" {
		sinks = dirSinks{Factory: sink.Factory{Quality: cfg.Render.JPEGQuality}, path: *framesDir}
	}

	svc := usecases.NewRenderService(
		fitfile.NewDecoder(),
		background.NewLoader(background.WithMaxPixels(cfg.Render.MaxBackgroundPixels)),
		raster.NewFactory(),
		sinks,
		memstore.New(time.Minute),
		history,
		nil,
		usecases.RenderOptions{
			MaxBackgroundSide: cfg.Render.MaxBackgroundSide,
			FPSDivisor:        cfg.Render.FPSDivisor,
		},
		logger,
	)

	res, err := svc.Render(ctx, usecases.RenderRequest{
		Kind:       kind,
		Format:     domain.OutputFormat(*format),
		Config:     renderCfg,
		Activity:   fitFile,
		Background: bgFile,
	})
	if err != nil {
		return err
	}

	if *framesDir != "" {
		slog.Info("frames written", "dir", *framesDir, "frames", res.Job.Frames, "job_id", res.Job.ID)
		return nil
	}
	if err := os.WriteFile(*out, res.Artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info("render written",
		"path", *out,
		"format", res.Job.Format,
		"points", res.Job.Points,
		"frames", res.Job.Frames,
		"job_id", res.Job.ID,
	)
	return nil
}

// dirSinks writes every frame to a PNG directory instead of the request
// writer.
type dirSinks struct {
	sink.Factory
	path string
}

func (d dirSinks) NewSink(format domain.OutputFormat, _ io.Writer, _ int) (ports.FrameSink, error) {
	return sink.NewDir(d.path)
}

func runHistory(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "number of jobs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	history, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	jobs, err := history.List(ctx, *limit, 0)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tFORMAT\tSTATUS\tPOINTS\tFRAMES\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			j.ID, j.Kind, j.Format, j.Status, j.Points, j.Frames, j.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is not configured")
	}
	if *subject == "" {
		return fmt.Errorf("-subject is required")
	}
	tok, err := http.NewToken(cfg.Server.JWTSecret, *subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
