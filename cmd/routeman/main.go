package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/audio"
	"nyiyui.ca/hato/routeman/auto"
	"nyiyui.ca/hato/routeman/catalog"
	"nyiyui.ca/hato/routeman/config"
	"nyiyui.ca/hato/routeman/kujo"
	"nyiyui.ca/hato/routeman/runtime"
	"nyiyui.ca/hato/routeman/signal"
	"nyiyui.ca/hato/routeman/world"
)

const sampleRate = beep.SampleRate(44100)

func main() {
	defer zap.S().Sync()
	level := zap.LevelFlag("log-level", zap.InfoLevel, "set log level")
	configPath := flag.String("config", "", "path to JSON config (default $ROUTEMAN_CONFIG)")
	flag.Parse()
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.S().Fatalf("load .env: %s", err)
	}
	conf, err := config.Load(*configPath)
	if err != nil {
		zap.S().Fatalf("config: %s", err)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, conf); err != nil {
		zap.S().Fatalf("%s", err)
	}
}

func run(ctx context.Context, conf config.Config) error {
	cat, err := catalog.Open(conf.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()
	if len(conf.Stops) > 0 {
		if err := cat.Load(conf.Stops); err != nil {
			return err
		}
	}
	zap.S().Infow("catalog loaded", "stops", cat.AllStops())

	m := world.NewMemory()
	for _, f := range conf.Consists {
		if err := m.AddFormation(f); err != nil {
			return err
		}
	}

	seq := signal.New(signal.Conf{Sink: m, SampleInterval: conf.Signal.SampleInterval})
	defer seq.Close()
	patterns, err := conf.SignalPatterns()
	if err != nil {
		return err
	}
	for name, p := range patterns {
		seq.Register(name, p)
	}

	a := auto.New(auto.Conf{
		Catalog:          cat,
		World:            m,
		Inspector:        m,
		Signals:          seq,
		DeparturePattern: strings.ToLower(conf.Signal.DeparturePattern),
	})

	var g Graph
	var sim *world.Simulator
	if conf.Sim.Loco != "" {
		sim = world.NewSimulator(world.SimulatorConf{
			Comment: "config",
			Loco:    MustParseCarID(conf.Sim.Loco),
			Stops:   cat.AllStops(),
			Dwell:   conf.Sim.Dwell,
			Travel:  conf.Sim.Travel,
		})
		simRef := g.Add(sim.Actor())
		g.Add(a.Actor(ctx, simRef))
	} else {
		g.Add(a.Actor(ctx))
	}
	i := runtime.NewInstance(&g)
	if err := i.Check(); err != nil {
		return err
	}
	if conf.Trace != "" {
		f, err := os.Create(conf.Trace)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := i.Trace(f); err != nil {
			return err
		}
	}
	go func() {
		zap.S().Infof("starting runtime…")
		if err := i.Diffuse(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.S().Errorw("diffuse", "err", err)
		}
	}()
	if sim != nil {
		go func() {
			zap.S().Infof("starting simulation…")
			if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zap.S().Errorw("simulation", "err", err)
			}
		}()
	}

	if conf.Audio.Loco != "" {
		err := speaker.Init(sampleRate, sampleRate.N(time.Second/10))
		if err != nil {
			return err
		}
		h := audio.NewHorn(sampleRate, conf.Audio.Attack)
		speaker.Play(h)
		go h.Follow(ctx, m.Changes, MustParseCarID(conf.Audio.Loco))
	}

	zap.S().Infof("starting kujo on %s…", conf.Listen)
	k := kujo.NewServer(kujo.Conf{Auto: a, Catalog: cat, Changes: m.Changes})
	defer k.Close()
	srv := &http.Server{Addr: conf.Listen, Handler: k}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
