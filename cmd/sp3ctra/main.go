// Command sp3ctra starts the synthesis core with the stock
// config.Default() RuntimeConfig (printable as YAML with -dump-config),
// wiring whichever audio backend is selected and exiting cleanly on
// SIGINT/SIGTERM. Adapted from main.go's flag-and-peripheral
// bring-up shape, stripped of CPU/video/GUI selection since none of that
// exists in this domain.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/sp3ctra/sp3ctra/internal/audiosink"
	"github.com/sp3ctra/sp3ctra/internal/config"
	"github.com/sp3ctra/sp3ctra/internal/core"
)

func main() {
	backend := flag.String("backend", "oto", "audio backend: oto, portaudio, alsa, headless")
	dumpConfig := flag.Bool("dump-config", false, "print the effective RuntimeConfig as YAML and exit")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg := config.Default()

	if *dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			logger.Fatal("marshal config", "err", err)
		}
		fmt.Println(string(out))
		return
	}

	synth, err := core.New(cfg, logger)
	if err != nil {
		logger.Fatal("construct synthesis core", "err", err)
	}

	sink, err := openSink(*backend, cfg, synth)
	if err != nil {
		logger.Fatal("open audio sink", "err", err)
	}
	synth.AttachSink(sink)
	if reporter, ok := sink.(audiosink.UnderrunReporter); ok {
		reporter.SetUnderrunHandler(synth.Status.IncUnderrunReported)
	}

	if err := sink.Start(); err != nil {
		logger.Fatal("start audio sink", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := synth.Run(ctx); err != nil {
		logger.Error("synthesis core exited", "err", err)
	}

	if err := synth.Shutdown(); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

func openSink(backend string, cfg config.RuntimeConfig, synth *core.SynthesisCore) (audiosink.Sink, error) {
	switch backend {
	case "oto":
		return audiosink.NewOtoSink(cfg.Audio.SamplingFrequency, cfg.Audio.BufferSize, synth.Render)
	case "portaudio":
		return audiosink.NewPortaudioSink(cfg.Audio.SamplingFrequency, cfg.Audio.BufferSize, synth.Render)
	case "alsa":
		return audiosink.OpenALSASink(cfg.Audio.SamplingFrequency, cfg.Audio.BufferSize, synth.Render)
	case "headless":
		return audiosink.NewHeadlessSink(cfg.Audio.BufferSize, synth.Render), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
