package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/brandcam/asset"
	"github.com/chaos-io/brandcam/compose"
	"github.com/chaos-io/brandcam/config"
	"github.com/chaos-io/brandcam/live"
	"github.com/chaos-io/brandcam/metrics"
	"github.com/chaos-io/brandcam/segment"
	"github.com/chaos-io/brandcam/segment/zmqmask"
	"github.com/chaos-io/brandcam/server"
	"github.com/chaos-io/brandcam/store"
	"github.com/chaos-io/brandcam/studio"
	nhttp "github.com/chaos-io/brandcam/util/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the live compositing loop",
	Long: `Run the HTTP API and the live compositing loop.

Frames arrive over POST /frame; masks come from the configured matting
service, a ZMQ mask feed, or POST /mask. The latest composite is served
at GET /output.png and metrics are pushed on /ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func newComposer(cfg config.Config, logger *slog.Logger) (*compose.Composer, asset.Source) {
	loader := asset.NewLoader(
		asset.WithTimeout(cfg.Assets.Timeout.Std()),
		asset.WithMaxBytes(cfg.Assets.MaxBytes),
		asset.WithLogger(logger),
	)
	c := compose.NewComposer(
		compose.WithAssets(loader),
		compose.WithLogger(logger),
	)
	return c, loader
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	comp := live.NewCompositor(nil,
		live.WithSoftness(cfg.Segmentation.Softness),
		live.WithLogger(logger),
	)
	composer, loader := newComposer(cfg, logger)
	st := studio.New(comp,
		studio.WithComposer(composer),
		studio.WithAssets(loader),
		studio.WithLogger(logger),
	)

	switch p, err := db.LoadProfile(ctx, store.DefaultID); {
	case err == nil:
		if _, err := st.SetProfile(p); err != nil {
			logger.Warn("stored profile rejected", "err", err)
		} else {
			logger.Info("profile restored", "name", p.FullName, "level", p.Level)
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return err
	}

	frames := live.NewFrameBuffer()
	output := &server.Output{}
	loop := live.NewLoop(comp, frames, output, cfg.FrameInterval(), logger)

	srv := server.New(server.Deps{
		Studio:     st,
		Compositor: comp,
		Frames:     frames,
		Output:     output,
		Store:      db,
		ProfileID:  store.DefaultID,
		Logger:     logger,
	})

	reporter, err := metrics.NewReporter(cfg.Metrics.Schedule, comp.Metrics, logger)
	if err != nil {
		return err
	}
	reporter.Start()
	defer reporter.Stop()

	// 推理端要在帧循环启动前接好，否则最早的帧不会送去推理
	var worker *segment.Worker
	if cfg.Segmentation.URL != "" {
		inferFrames := segment.NewSlot[image.Image]()
		loop.FeedInference(inferFrames)
		remote := segment.NewRemote(cfg.Segmentation.URL, nhttp.NewHTTPClient(), logger)
		worker = segment.NewWorker(remote, inferFrames, comp.Masks(), cfg.Segmentation.Timeout.Std(), logger)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx, cfg.Server.Addr, server.DefaultPush) })
	if worker != nil {
		g.Go(func() error { return worker.Run(ctx) })
	}
	if cfg.Segmentation.ZMQEndpoint != "" {
		g.Go(func() error {
			return zmqmask.Stream(ctx, cfg.Segmentation.ZMQEndpoint, comp.Masks(), logger)
		})
	}

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
