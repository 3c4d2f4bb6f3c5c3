package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	orchestration "github.com/koscakluka/ema-s2s/core"
	"github.com/koscakluka/ema-s2s/core/tools"
	"github.com/koscakluka/ema-s2s/core/transport"
	"github.com/koscakluka/ema-s2s/internal/logging"
)

func runDialogue(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so it only logs to a file.
	var logOutput io.Writer = os.Stderr
	if !headless || cfg.LogFile != "" {
		file, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer file.Close()
		logOutput = file
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)

	backend, err := openAudio(cfg.AudioBackend)
	if err != nil {
		return fmt.Errorf("failed to open audio backend %q: %w", cfg.AudioBackend, err)
	}
	defer backend.Close()
	input, output := backend.InputEncoding(), backend.OutputEncoding()
	slog.Debug("audio backend ready",
		"backend", cfg.AudioBackend,
		"input_rate", input.SampleRate,
		"output_rate", output.SampleRate,
		"format", input.Format.Name(),
	)

	var knowledgeBase *tools.KnowledgeBase
	if cfg.KnowledgeBaseURL != "" {
		knowledgeBase = tools.NewKnowledgeBase(cfg.KnowledgeBaseURL)
	}

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithTransport(transport.WebsocketDialer{URL: cfg.ServerURL}),
		orchestration.WithCaptureDevice(backend),
		orchestration.WithPlaybackSink(backend),
		orchestration.WithToolHandler(tools.NewDefaultRegistry(tools.WithKnowledgeBase(knowledgeBase))),
		orchestration.WithConfig(cfg.Session()),
	)
	defer orchestrator.Close()

	slog.Info("starting dialogue client",
		"server_url", cfg.ServerURL,
		"voice_id", cfg.VoiceID,
		"audio_backend", cfg.AudioBackend,
	)

	if headless {
		return runHeadless(ctx, orchestrator, os.Stdout)
	}
	return runTUI(ctx, orchestrator)
}
