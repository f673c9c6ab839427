package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gekko3d/voxstream"
	"github.com/gekko3d/voxstream/config"
	"github.com/gekko3d/voxstream/voxel/mesh"
	"github.com/gekko3d/voxstream/voxel/terrain"
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config (default: $VOXSTREAM_CONFIG)")
		headless   = flag.Bool("headless", false, "run without a window, driving a scripted player")
		frames     = flag.Int("frames", 600, "frames to run in headless mode (0 runs until interrupted)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := voxstream.NewDefaultLogger("voxstream", *debug)
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	if *headless {
		cfg.Window.Headless = true
	}
	if *debug {
		cfg.Log.Debug = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	app := buildApp(ctx, cfg, registry, *frames)
	app.Run()
}

func serveMetrics(addr string, registry *prometheus.Registry, logger voxstream.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}

func buildApp(ctx context.Context, cfg *config.Config, registry prometheus.Registerer, frames int) *voxstream.App {
	params := terrain.DefaultParams(cfg.World.Seed)
	params.Scale = cfg.World.NoiseScale
	params.BaseHeight = cfg.World.BaseHeight
	params.Amplitude = cfg.World.Amplitude
	generator := terrain.NewPerlin(params)

	builder := voxstream.NewAppBuilder().UseModule(
		voxstream.LoggingModule{Prefix: "voxstream", Debug: cfg.Log.Debug},
		voxstream.TimeModule{TickRate: cfg.Time.TickRate, Manual: cfg.Window.Headless},
	)
	if !cfg.Window.Headless {
		builder.UseModule(voxstream.NewPlatformWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title))
	}
	builder.UseModule(voxstream.InputModule{Width: cfg.Window.Width, Height: cfg.Window.Height})
	if !cfg.Window.Headless {
		builder.UseModule(voxstream.GpuModule{})
	}
	builder.UseModule(
		voxstream.ChunkStreamingModule{
			Generator:      generator,
			ViewRadius:     cfg.World.ViewRadius,
			VerticalRadius: cfg.World.VerticalRadius,
			Registerer:     registry,
			Pool: mesh.PoolConfig{
				MaxSlots:          cfg.Mesh.MaxSlots,
				Workers:           cfg.Mesh.Workers,
				AnimationDuration: cfg.Mesh.AnimationDuration(),
				RetryDelay:        cfg.Mesh.RetryDelay,
			},
		},
		voxstream.InteractionModule{
			TicksPerInteraction: cfg.Interaction.TicksPerInteraction,
			Reach:               cfg.Interaction.Reach,
		},
		voxstream.FlyingCameraModule{},
		sessionModule{ctx: ctx, headless: cfg.Window.Headless, frames: frames, spawnHeight: float32(params.BaseHeight + params.Amplitude + 4)},
	)
	return builder.Build()
}

// sessionModule spawns the player, stops the app on interrupt and, when
// headless, drives the player with a fixed script.
type sessionModule struct {
	ctx         context.Context
	headless    bool
	frames      int
	spawnHeight float32
}

type session struct {
	ctx    context.Context
	frames int
	frame  int
}

func (m sessionModule) Install(app *voxstream.App, cmd *voxstream.Commands) {
	cam := voxstream.NewCameraComponent()
	cam.Position = mgl32.Vec3{0.5, m.spawnHeight, 0.5}
	cam.Pitch = -mgl32.DegToRad(60)
	cmd.AddEntity(cam, voxstream.NewPlayerComponent(terrain.Dirt), voxstream.FlyingCameraComponent{})
	cmd.AddResources(&session{ctx: m.ctx, frames: m.frames})

	app.UseSystem(voxstream.System(interruptSystem).InStage(voxstream.Finale).RunAlways())
	app.UseSystem(voxstream.System(reportSystem).InStage(voxstream.Finale).RunAlways())
	if m.headless {
		app.UseSystem(voxstream.System(scriptSystem).InStage(voxstream.Prelude).RunAlways())
	}
}

func interruptSystem(cmd *voxstream.Commands, s *session) {
	s.frame++
	select {
	case <-s.ctx.Done():
		cmd.Logger().Infof("interrupted after %d frames", s.frame)
		cmd.Stop()
	default:
	}
}

// scriptSystem flies forward, breaking a voxel every other second and
// placing one in the seconds between.
func scriptSystem(cmd *voxstream.Commands, s *session, input *voxstream.Input) {
	if s.frames > 0 && s.frame >= s.frames {
		cmd.Stop()
		return
	}
	input.Hold(voxstream.KeyW)

	second := s.frame / 60
	if second%2 == 0 {
		input.Let(voxstream.MouseButtonRight)
		input.Hold(voxstream.MouseButtonLeft)
	} else {
		input.Let(voxstream.MouseButtonLeft)
		input.Hold(voxstream.MouseButtonRight)
	}
}

func reportSystem(cmd *voxstream.Commands, s *session, store *volume.Store, streaming *voxstream.ChunkStreaming, pool *mesh.Pool, interaction *voxstream.Interaction) {
	if s.frame%300 != 0 {
		return
	}
	cmd.Logger().Infof("frame %d: %d chunks loaded, %d visible, %d mesh slots, %d edits",
		s.frame, store.Len(), len(streaming.Visible), len(pool.Slots()), interaction.Applied)
}
