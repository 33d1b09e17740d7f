// Package bootstrap loads configuration, builds every component of the scan
// pipeline and runs it either once or as a long-lived server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"ar-scan-go/internal/app/scan"
	"ar-scan-go/internal/domain/capture"
	"ar-scan-go/internal/domain/eventbus"
	domainimage "ar-scan-go/internal/domain/image"
	"ar-scan-go/internal/domain/llm"
	"ar-scan-go/internal/domain/tts"
	"ar-scan-go/internal/domain/vision"
	platformconfig "ar-scan-go/internal/platform/config"
	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/httpjson"
	"ar-scan-go/internal/platform/logging"
	"ar-scan-go/internal/platform/observability"
	httptransport "ar-scan-go/internal/transport/http"
	"ar-scan-go/internal/transport/ws"
)

// Options selects the configuration and run mode.
type Options struct {
	ConfigPath string
	// ImagePath overrides capture.image_path.
	ImagePath string
	DotEnv    bool
	// Serve runs the HTTP/ws server instead of a single scan.
	Serve bool
	// Stdout receives the console presentation. Nil means os.Stdout.
	Stdout io.Writer
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts       Options
	config     *platformconfig.Config
	configPath string
	logger     *logging.Logger

	observabilityShutdown observability.ShutdownFunc

	client     *httpjson.Client
	recognizer *vision.Service
	generator  llm.Generator
	speech     *tts.Service

	bus       *eventbus.Bus
	presenter func()
	pipeline  *scan.Pipeline
	source    capture.Source
}

// App is a fully initialised pipeline with its collaborators.
type App struct {
	state *appState
}

// New runs the init graph and returns the assembled application.
func New(ctx context.Context, opts Options) (*App, error) {
	state := &appState{opts: opts}
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return nil, err
	}
	logBootstrapGraph(steps, state.logger)
	return &App{state: state}, nil
}

// Run builds the application and executes the selected mode until it ends or
// a termination signal arrives.
func Run(ctx context.Context, opts Options) error {
	app, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.Serve {
		return app.Serve(signalCtx)
	}
	out, err := app.ScanOnce(signalCtx)
	if err != nil {
		return err
	}
	if out.Err != nil {
		app.state.logger.DebugTag(logging.TagScan, "scan %d ended in %s: %v", out.ScanID, out.State, out.Err)
	}
	return nil
}

// Pipeline exposes the orchestrator.
func (a *App) Pipeline() *scan.Pipeline { return a.state.pipeline }

// Config exposes the effective configuration.
func (a *App) Config() *platformconfig.Config { return a.state.config }

// ScanOnce scans the default capture source and waits for the scan to end.
// Stage failures are presented, not returned.
func (a *App) ScanOnce(ctx context.Context) (scan.Outcome, error) {
	if a.state.source == nil {
		return scan.Outcome{}, platformerrors.New(platformerrors.KindConfig, "scan:once", "no capture image configured (capture.image_path or --image)")
	}
	ticket, err := a.state.pipeline.Scan(ctx, a.state.source)
	if err != nil {
		return scan.Outcome{}, err
	}
	select {
	case out := <-ticket.Done:
		return out, nil
	case <-ctx.Done():
		a.state.pipeline.Close()
		return <-ticket.Done, nil
	}
}

// Serve runs the HTTP control surface and event stream until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	logger := a.state.logger

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(rootCtx)
	hub := ws.NewHub(a.state.bus, logger)
	if _, err := a.startHTTPServer(group, groupCtx, hub); err != nil {
		return err
	}

	return waitForShutdown(groupCtx, cancel, logger, group, hub)
}

// Close stops the pipeline and releases every resource. It is idempotent.
func (a *App) Close() {
	a.state.close()
}

func (s *appState) close() {
	if s.pipeline != nil {
		s.pipeline.Close()
	}
	if s.presenter != nil {
		s.presenter()
		s.presenter = nil
	}
	if s.speech != nil {
		if err := s.speech.Close(); err != nil && s.logger != nil {
			s.logger.WarnTag(logging.TagTTS, "temp dir not removed: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		_ = s.observabilityShutdown(context.Background())
		s.observabilityShutdown = nil
	}
	if s.logger != nil {
		s.logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *logging.Logger) {
	if logger == nil {
		return
	}
	logger.DebugTag(logging.TagBoot, "init graph")
	for _, step := range steps {
		logger.DebugTag(logging.TagBoot, "  %s: %s", step.ID, step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup",
			Title:     "Setup stage spans and metrics",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "services:init",
			Title:     "Initialise vision, text and speech services",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initServicesStep,
		},
		{
			ID:        "pipeline:init",
			Title:     "Initialise scan pipeline",
			DependsOn: []string{"services:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initPipelineStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().
		WithDotEnv(state.opts.DotEnv).
		WithPath(state.opts.ConfigPath).
		Load()
	if err != nil {
		return err
	}
	if state.opts.ImagePath != "" {
		result.Config.Capture.ImagePath = state.opts.ImagePath
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init", "config not loaded")
	}

	logger, err := logging.New(logging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init", "failed to initialize logging", err)
	}
	state.logger = logger

	source := state.configPath
	if source == "" {
		source = "defaults"
	}
	logger.InfoTag(logging.TagBoot, "logging ready [%s] config=%s", state.config.Log.Level, source)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup", "failed to setup observability", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initServicesStep(_ context.Context, state *appState) error {
	cfg := state.config
	logger := state.logger

	state.client = httpjson.New(cfg.HTTP.Timeout)

	encoder := domainimage.NewPipeline(domainimage.Options{
		MaxBytes:    cfg.Capture.MaxBytes,
		MaxSide:     cfg.Capture.MaxSide,
		JPEGQuality: cfg.Vision.JPEGQuality,
		Logger:      logger,
	})

	if cfg.Vision.APIKey == "" {
		logger.WarnTag(logging.TagVision, "no vision api key configured, recognition requests will be rejected")
	}
	state.recognizer = vision.NewService(vision.Config{
		URL:        cfg.Vision.URL,
		APIKey:     cfg.Vision.APIKey,
		MaxResults: cfg.Vision.MaxResults,
	}, state.client, encoder, logger)

	if cfg.LLM.APIKey == "" {
		logger.WarnTag(logging.TagLLM, "no llm api key configured, using sample facts")
		state.generator = llm.SampleFacts{}
	} else {
		state.generator = llm.NewService(llm.Config{
			URL:         cfg.LLM.URL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Referer:     cfg.LLM.Referer,
			Title:       cfg.LLM.Title,
		}, state.client, logger)
	}

	speech, err := tts.NewService(tts.Options{
		Backend: newSpeechBackend(cfg, state.client),
		Decoder: tts.MP3Decoder{},
		Player:  newPlayer(cfg),
		Voices: tts.VoiceSet{
			LanguageCode: cfg.TTS.LanguageCode,
			Male:         cfg.TTS.MaleVoice,
			Female:       cfg.TTS.FemaleVoice,
		},
		Female:       cfg.TTS.Female,
		CleanupGrace: cfg.Audio.CleanupGrace,
		TempDir:      cfg.Audio.TempDir,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	state.speech = speech
	logger.InfoTag(logging.TagTTS, "speech ready provider=%s player=%s dir=%s", cfg.TTS.Provider, cfg.Audio.Player, speech.Dir())
	return nil
}

func newSpeechBackend(cfg *platformconfig.Config, client *httpjson.Client) tts.Backend {
	if cfg.TTS.Provider == "edge" {
		return tts.NewEdgeBackend(cfg.TTS.EdgeVoice)
	}
	return tts.NewGoogleBackend(tts.GoogleConfig{
		URL:           cfg.TTS.URL,
		APIKey:        cfg.TTS.APIKey,
		AudioEncoding: cfg.TTS.AudioEncoding,
	}, client)
}

func newPlayer(cfg *platformconfig.Config) tts.Player {
	if cfg.Audio.Player == "command" {
		return tts.CommandPlayer{Args: cfg.Audio.Command}
	}
	return tts.NullPlayer{}
}

func initPipelineStep(_ context.Context, state *appState) error {
	stdout := state.opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	state.bus = eventbus.New()
	state.presenter = state.bus.Subscribe(eventbus.NewConsoleHandler(stdout).Handle)

	pipeline, err := scan.NewPipeline(&scan.PipelineConfig{
		Recognizer: state.recognizer,
		Generator:  state.generator,
		Speaker:    state.speech,
		Bus:        state.bus,
		Logger:     state.logger,
	})
	if err != nil {
		return err
	}
	state.pipeline = pipeline

	if path := state.config.Capture.ImagePath; path != "" {
		state.source = capture.FileSource{Path: path}
	}
	return nil
}

func (a *App) startHTTPServer(g *errgroup.Group, groupCtx context.Context, hub *ws.Hub) (*http.Server, error) {
	cfg := a.state.config
	logger := a.state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", gin.H{})
	})

	httptransport.NewScanHandler(httptransport.ScanHandlerOptions{
		Scanner:     a.state.pipeline,
		BaseContext: groupCtx,
		Default:     a.state.source,
		MaxBytes:    cfg.Capture.MaxBytes,
		Logger:      logger,
	}).Register(httpRouter.API)

	wsRouter := ws.NewRouter(hub, logger, ws.RouterOptions{})
	router.GET("/ws", gin.WrapF(wsRouter.Handle))

	addr := cfg.Server.IP + ":" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag(logging.TagHTTP, "listening on http://%s (events on /ws)", addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag(logging.TagHTTP, "shutdown failed: %v", err)
			} else {
				logger.InfoTag(logging.TagHTTP, "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag(logging.TagHTTP, "server failed: %v", err)
			return platformerrors.Wrap(platformerrors.KindTransport, "http:serve", "http server failed", err)
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *logging.Logger,
	g *errgroup.Group,
	hub *ws.Hub,
) error {
	<-ctx.Done()
	logger.InfoTag(logging.TagBoot, "shutting down: %v", context.Cause(ctx))

	cancel()
	hub.CloseAll(ws.ErrSessionShutdown)

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag(logging.TagBoot, "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag(logging.TagBoot, "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag(logging.TagBoot, "shutdown timed out")
		return platformerrors.New(platformerrors.KindBootstrap, "shutdown", "shutdown timed out")
	}
	return nil
}
