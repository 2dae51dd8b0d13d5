package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-wayfinder/config"
	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/internal/log"
	"github.com/nvr-ai/go-wayfinder/models"
	"github.com/nvr-ai/go-wayfinder/profiler"
	"github.com/nvr-ai/go-wayfinder/protocol"
	"github.com/nvr-ai/go-wayfinder/publish"
	"github.com/nvr-ai/go-wayfinder/server"
	"github.com/nvr-ai/go-wayfinder/util"
	"github.com/pkg/errors"
)

// shutdownTimeout bounds the graceful server shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath string
		addr       string
		replayDir  string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&addr, "addr", "", "Listen address, overrides the config")
	flag.StringVar(&replayDir, "replay", "", "Directory of frame-N.json files to replay instead of serving")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides the config")
	flag.Parse()

	if err := run(configPath, addr, replayDir, logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "wayfinder: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, replayDir, logLevel string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to load .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Init(cfg.LogLevel)

	tables, err := models.LoadReferenceTables(cfg.TablesPath)
	if err != nil {
		return err
	}

	reportInterval := cfg.Profiler.ReportInterval
	if reportInterval <= 0 {
		reportInterval = -1
	}
	prof := profiler.NewProfiler(profiler.Options{ReportInterval: reportInterval})

	pipeline, err := controller.NewPipeline(cfg.Pipeline(), tables, controller.PipelineOptions{Profiler: prof})
	if err != nil {
		return err
	}

	if replayDir != "" {
		return replay(pipeline, cfg.Depth, replayDir, os.Stdout)
	}
	return serve(cfg, pipeline, prof)
}

func serve(cfg config.Config, pipeline *controller.Pipeline, prof *profiler.Profiler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher publish.Publisher = publish.NopPublisher{}
	if cfg.Kafka.Enabled() {
		kp, err := publish.NewKafkaPublisher(cfg.Kafka, nil)
		if err != nil {
			return err
		}
		prof.AddMetricsCollector(kp)
		publisher = kp
	}
	defer publisher.Close()

	prof.Start(ctx)
	defer prof.Stop()

	srv := server.New(cfg.Server, pipeline, server.Options{Publisher: publisher, Profiler: prof})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// replay runs recorded frames through the pipeline and writes one JSON
// response per line. A depth-N.tiff next to frame-N.json is used as the
// frame's depth map.
func replay(pipeline *controller.Pipeline, depth images.DepthParams, dir string, w io.Writer) error {
	frames, err := util.LoadDirectoryFrameFiles(dir)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, f := range frames {
		frame, err := f.Request.Frame()
		if err != nil {
			log.Warn("skipping frame", "path", f.Path, "error", err)
			continue
		}

		closeDepth, err := attachDepthMap(&frame, filepath.Join(dir, "depth-"+strconv.Itoa(f.Frame)+".tiff"), depth)
		if err != nil {
			return err
		}
		out, err := pipeline.Process(frame)
		closeDepth()
		if err != nil {
			return err
		}

		if err := enc.Encode(protocol.NewNavigateResponse(out)); err != nil {
			return errors.Wrap(err, "failed to write response")
		}
	}

	log.Info("replay finished", "frames", len(frames))
	return nil
}

// attachDepthMap sets frame.Depth from path when the file exists. The
// returned func releases the map.
func attachDepthMap(frame *controller.Frame, path string, params images.DepthParams) (func(), error) {
	if _, err := os.Stat(path); err != nil {
		return func() {}, nil
	}

	mat, err := images.ReadDepthFile(path)
	if err != nil {
		return nil, err
	}
	dm, err := images.NewDepthMap(mat, frame.Width, frame.Height, params)
	if err != nil {
		mat.Close()
		return nil, errors.Wrapf(err, "depth map %s", path)
	}

	frame.Depth = dm
	return func() { mat.Close() }, nil
}
