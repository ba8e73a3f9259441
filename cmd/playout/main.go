/*
DESCRIPTION
  playout is a 24/7 linear television playout daemon. It drives a
  Scheduler against a Playlist Store to produce a gap-free sequence of
  RenderCommands, and a Pipeline Supervisor to turn that sequence into
  bytes on the wire (spec.md §1-§6).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/playout/clock"
	"github.com/ausocean/playout/config"
	"github.com/ausocean/playout/notify"
	"github.com/ausocean/playout/pipeline"
	"github.com/ausocean/playout/playlist"
	"github.com/ausocean/playout/probe"
	"github.com/ausocean/playout/scheduler"
)

// defaultConfigPath is the fixed configuration location (spec.md §6),
// overridable by the PLAYOUT_CONFIG environment variable for test
// harnesses (SPEC_FULL.md §6).
const defaultConfigPath = "/etc/playout/playout.json"

var logLevels = map[string]int8{
	"debug":   logging.Debug,
	"info":    logging.Info,
	"warning": logging.Warning,
	"error":   logging.Error,
	"fatal":   logging.Fatal,
}

func main() {
	logPath := flag.String("l", "", "override log file path")
	flag.StringVar(logPath, "log", "", "override log file path")
	flag.Parse()

	cfgPath := os.Getenv("PLAYOUT_CONFIG")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	path := cfg.Logging.Path
	if *logPath != "" {
		path = *logPath
	}
	fileLog := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.Logging.MaxSize,
		MaxAge:     cfg.Logging.MaxAge,
		MaxBackups: cfg.Logging.MaxFiles,
	}
	level, ok := logLevels[cfg.Logging.Level]
	if !ok {
		level = logging.Info
	}
	log := logging.New(level, io.MultiWriter(fileLog, os.Stderr), false)

	if err := run(cfg, cfgPath, log); err != nil {
		log.Fatal("playout exiting", "error", err)
	}
}

func run(cfg *config.Config, cfgPath string, log logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

	notifier := notify.New(
		cfg.Mail.Server, cfg.Mail.Port, cfg.Mail.Sender, cfg.Mail.Password,
		cfg.Mail.Recip, cfg.Mail.Subject, log,
	)

	prober := &probe.FFProbe{}

	validator := playlist.NewValidator(cfg.PreCompress.LiveProtocols, cfg.Playlist.DayStart, prober, notifier, log)
	store := playlist.NewStore(cfg.Playlist.Path, playlist.Remap{From: cfg.Playlist.MapFrom, To: cfg.Playlist.MapTo}, log, validator)

	bclock := clock.New(cfg.Playlist.DayStart, time.Duration(cfg.Playlist.ShiftSec)*time.Second)

	sched := scheduler.New(bclock, store, scheduler.Config{
		Width: cfg.PreCompress.Width, Height: cfg.PreCompress.Height, FPS: cfg.PreCompress.FPS,
		CopyMode:        cfg.PreCompress.CopyMode,
		LiveProtocols:   cfg.PreCompress.LiveProtocols,
		Filler:          cfg.Playlist.Filler,
		Blackclip:       cfg.Playlist.Blackclip,
		BufferLength:    cfg.Buffer.LengthSec,
		BufferTolerance: cfg.Buffer.Tolerance,
		LogoPath:        cfg.Out.Logo,
		LogoExpr:        cfg.Out.LogoOverlayExpr,
	}, prober, notifier, log)

	housekeeper := pipeline.NewHousekeeper(log)
	if err := housekeeper.Schedule(cfg.Playlist.DayStart, store); err != nil {
		log.Warning("could not schedule housekeeping cron", "error", err)
	} else {
		housekeeper.Start()
		defer housekeeper.Stop()
	}

	bufferSize := pipeline.BufferSizeKB(cfg.PreCompress.CopyMode, cfg.PreCompress.VideoBitrate, cfg.Buffer.LengthSec, firstClipBitrate(cfg, prober))

	rendererArgs := []string{"-v", "error", "-hide_banner", "-nostats"}

	outputPath, outputArgs := outputCommand(cfg)

	supervisor := pipeline.NewSupervisor(pipeline.Config{
		RendererPath: "ffmpeg",
		RendererArgs: rendererArgs,
		EncoderArgs:  cfg.PreCompress.EncoderTrailer(),
		BufferCLI:    cfg.Buffer.CLI,
		BufferArgs:   cfg.Buffer.Cmd,
		BufferSize:   bufferSize,
		Preview:      cfg.Out.Preview,
		OutputPath:   outputPath,
		OutputArgs:   outputArgs,
	}, &producerAdapter{sched}, log)

	log.Info("playout starting", "config", cfgPath)
	return supervisor.Run(ctx)
}

// producerAdapter satisfies pipeline.Producer by translating
// scheduler.RenderCommand to pipeline.RenderCommand, so the two
// packages don't share a type (spec.md §4.4's Producer boundary).
type producerAdapter struct {
	sched *scheduler.Scheduler
}

func (a *producerAdapter) Next(ctx context.Context) (*pipeline.RenderCommand, bool, error) {
	cmd, ok, err := a.sched.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &pipeline.RenderCommand{
		ID:           cmd.ID.String(),
		Args:         cmd.Args,
		PlayableSpan: cmd.PlayableSpan,
		IsDummy:      cmd.IsDummy,
	}, true, nil
}

// firstClipBitrate probes today's first playlist clip for its bitrate
// (spec.md §4.4 "Copy mode: probe the bitrate of the first clip").
// A nil return means "no playlist to probe at all", which
// pipeline.BufferSizeKB treats as "playlist missing" (flat default
// 5000 KB). A non-nil return of 0 means "playlist and first clip exist
// but the bitrate could not be determined", which BufferSizeKB treats
// as its own defaultCopyBitrate (4000 bits/s) branch -- these are
// distinct failure modes and must not collapse to the same nil return.
func firstClipBitrate(cfg *config.Config, prober *probe.FFProbe) *float64 {
	if !cfg.PreCompress.CopyMode {
		return nil
	}
	store := playlist.NewStore(cfg.Playlist.Path, playlist.Remap{From: cfg.Playlist.MapFrom, To: cfg.Playlist.MapTo}, nil, nil)
	bclock := clock.New(cfg.Playlist.DayStart, time.Duration(cfg.Playlist.ShiftSec)*time.Second)
	pl, err := store.Load(bclock.DateFor(true))
	if err != nil || len(pl.Program) == 0 {
		return nil
	}

	undetermined := 0.0

	out, err := prober.BitRate(context.Background(), pl.Program[0].Source)
	if err != nil {
		return &undetermined
	}
	bits, ok := parseFloat(out)
	if !ok || bits <= 0 {
		return &undetermined
	}
	bitsPerKB := bits / 1024
	return &bitsPerKB
}

func outputCommand(cfg *config.Config) (string, []string) {
	if cfg.Out.Preview {
		return "ffplay", []string{"-"}
	}
	args := append(append([]string{}, cfg.Out.PostCompVideo...), cfg.Out.PostCompAudio...)
	args = append(args, cfg.Out.PostCompExtra...)
	args = append(args,
		"-metadata", "service_name="+cfg.Out.ServiceName,
		"-metadata", "service_provider="+cfg.Out.ServiceProvider,
		cfg.Out.Addr,
	)
	return "ffmpeg", args
}

func parseFloat(s string) (float64, bool) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err == nil
}
