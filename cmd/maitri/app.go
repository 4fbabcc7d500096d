package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/maitri/internal/completion"
	"github.com/hammamikhairi/maitri/internal/config"
	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
	"github.com/hammamikhairi/maitri/internal/session"
	"github.com/hammamikhairi/maitri/internal/speech"
)

type appOptions struct {
	// interactive enables speech input and spoken replies. One-shot
	// commands never touch audio devices.
	interactive bool
	// logOut overrides the configured log destination.
	logOut io.Writer
}

// app holds the wired components of one run.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	session *session.Controller
	voice   *speech.Voice // nil when spoken replies are off

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	logOut := opts.logOut
	if logOut == nil {
		out, closeLog := openLog(cfg.Log.File)
		logOut = out
		a.closers = append(a.closers, closeLog)
	}

	// Third-party libs such as the whisper transcriber log through the
	// standard log package; keep them off the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	a.log = logger.New(cfg.Log.LogLevel(), logOut)

	client, err := newCompletionClient(cfg.Completion, a.log.With("completion"))
	if err != nil {
		return nil, err
	}

	var sp *speech.Controller
	if opts.interactive && cfg.Speech.Enabled {
		sp = speech.NewController(ctx, newRecognizer(cfg.Speech, a.log.With("speech")), a.log.With("speech"))
	}

	a.session = session.NewController(client, sp, a.log.With("session"),
		session.WithWindow(cfg.Completion.Window),
		session.WithReplyTimeout(cfg.Completion.ReplyTimeout),
	)

	if opts.interactive && cfg.Voice.Enabled {
		a.voice = newVoice(cfg.Voice, a.log.With("voice"))
		if a.voice != nil {
			a.voice.Start(ctx)
			a.closers = append(a.closers, a.session.Subscribe(a.speakReplies))
		}
	}

	return a, nil
}

// speakReplies reads final bot replies aloud and goes quiet as soon as
// the mic opens, so the recognizer does not hear the reply.
func (a *app) speakReplies(u session.Update) {
	switch u.Kind {
	case session.UpdateResolved:
		if u.Message.Status == domain.StatusFinal {
			a.voice.Say(u.Message.Text)
		}
	case session.UpdateListening:
		if u.Listen == domain.ListenListening {
			a.voice.Interrupt()
		}
	}
}

// Close releases what newApp opened, most recent first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openLog opens the log file, creating its directory. "stderr" or a
// failure to open falls back to the console.
func openLog(path string) (io.Writer, func()) {
	if path == "" || path == "stderr" {
		return os.Stderr, func() {}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", path, err)
		return os.Stderr, func() {}
	}
	return f, func() { _ = f.Close() }
}

func newCompletionClient(cfg config.Completion, log *logger.Logger) (domain.CompletionClient, error) {
	switch cfg.Backend {
	case config.BackendEcho:
		log.Info("completion: echo backend (delay=%s)", cfg.EchoDelay)
		return completion.NewEchoClient(cfg.EchoReply, cfg.EchoDelay, log), nil

	case config.BackendVertex:
		log.Info("completion: vertex backend (project=%s, location=%s, model=%s)", cfg.VertexProject, cfg.VertexLocation, cfg.Model)
		return completion.NewVertexClient(completion.VertexConfig{
			Project:      cfg.VertexProject,
			Location:     cfg.VertexLocation,
			Model:        cfg.Model,
			Window:       cfg.Window,
			Temperature:  cfg.Temperature,
			SystemPrompt: cfg.SystemPrompt,
		}, log), nil

	case config.BackendOpenAI:
		opts := []completion.OpenAIOption{
			completion.WithChatModel(cfg.OpenAIModel),
			completion.WithChatWindow(cfg.Window),
			completion.WithChatSystemPrompt(cfg.SystemPrompt),
			completion.WithChatHTTPTimeout(cfg.HTTPTimeout),
		}
		if cfg.Temperature != nil {
			opts = append(opts, completion.WithChatTemperature(*cfg.Temperature))
		}
		log.Info("completion: openai backend (endpoint=%s)", cfg.OpenAIEndpoint)
		return completion.NewOpenAIClient(cfg.OpenAIEndpoint, cfg.APIKey, log, opts...), nil

	case config.BackendGemini:
		opts := []completion.GeminiOption{
			completion.WithModel(cfg.Model),
			completion.WithBaseURL(cfg.BaseURL),
			completion.WithWindow(cfg.Window),
			completion.WithSystemPrompt(cfg.SystemPrompt),
			completion.WithHTTPTimeout(cfg.HTTPTimeout),
		}
		if cfg.Temperature != nil {
			opts = append(opts, completion.WithTemperature(*cfg.Temperature))
		}
		if cfg.APIKey == "" {
			log.Warn("completion: no API key set; replies will report a missing credential")
		}
		client := completion.NewGeminiClient(cfg.APIKey, log, opts...)
		log.Info("completion: gemini backend (model=%s)", client.Model())
		return client, nil
	}
	return nil, fmt.Errorf("completion: unknown backend %q", cfg.Backend)
}

// newRecognizer returns the Whisper recognizer. Its probe decides later
// whether voice input is usable.
func newRecognizer(cfg config.Speech, log *logger.Logger) speech.Recognizer {
	return speech.NewWhisperRecognizer(cfg.WhisperBin, cfg.WhisperModel, log,
		speech.WithChunkDuration(cfg.Chunk),
		speech.WithMaxListen(cfg.MaxListen),
		speech.WithTempDir(cfg.TempDir),
		speech.WithLocale(cfg.Locale),
	)
}

// newVoice wires Azure TTS to the audio player. Returns nil when
// credentials are missing or no audio output is available.
func newVoice(cfg config.Voice, log *logger.Logger) *speech.Voice {
	if cfg.AzureKey == "" || cfg.AzureRegion == "" {
		log.Info("voice disabled: set %s and %s to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
		return nil
	}

	tts := speech.NewAzureClient(cfg.AzureKey, cfg.AzureRegion, log, speech.WithVoice(cfg.Voice))
	player, err := speech.NewPlayer(log)
	if err != nil {
		log.Error("audio player init failed, voice disabled: %v", err)
		return nil
	}

	log.Info("voice enabled (voice=%s, region=%s)", tts.Voice(), tts.Region())
	return speech.NewVoice(tts, player, log)
}
