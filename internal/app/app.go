package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/exec"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"

	"github.com/voxpost/voxpost/internal/commandparser"
	"github.com/voxpost/voxpost/internal/commandparser/parserimpl"
	"github.com/voxpost/voxpost/internal/coordinator"
	"github.com/voxpost/voxpost/internal/coordinator/coordinatorimpl"
	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/media"
	"github.com/voxpost/voxpost/internal/media/mediaimpl"
	_ "github.com/voxpost/voxpost/internal/migrations"
	"github.com/voxpost/voxpost/internal/pgx"
	"github.com/voxpost/voxpost/internal/publisher"
	"github.com/voxpost/voxpost/internal/publisher/publisherimpl"
	"github.com/voxpost/voxpost/internal/recorder"
	"github.com/voxpost/voxpost/internal/recorder/device"
	"github.com/voxpost/voxpost/internal/recorder/recorderimpl"
	repositories "github.com/voxpost/voxpost/internal/repositories/fx"
	"github.com/voxpost/voxpost/internal/scheduler"
	"github.com/voxpost/voxpost/internal/scheduler/schedulerimpl"
	"github.com/voxpost/voxpost/internal/transcriber"
	"github.com/voxpost/voxpost/internal/transcriber/transcriberimpl"
	"github.com/voxpost/voxpost/pkg/config"
	"github.com/voxpost/voxpost/pkg/logger"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
	),
	fx.Provide(
		newRecorderConfig,
		newCaptureDevice,
		newEnvironment,
		newEventSink,
	),
	fx.Provide(
		fx.Annotate(
			recorderimpl.New,
			fx.As(new(recorder.Client)),
		), fx.Annotate(
			transcriberimpl.New,
			fx.As(new(transcriber.Client)),
		), fx.Annotate(
			parserimpl.New,
			fx.As(new(commandparser.Client)),
		), fx.Annotate(
			mediaimpl.New,
			fx.As(new(media.Coordinator)),
		), fx.Annotate(
			publisherimpl.New,
			fx.As(new(publisher.Client)),
		), fx.Annotate(
			coordinatorimpl.New,
			fx.As(new(coordinator.Client)),
		), fx.Annotate(
			schedulerimpl.New,
			fx.As(new(scheduler.Client)),
		),
	),
	repositories.Module,
	fx.Invoke(
		func(c *config.Config) error {
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}

			db, err := sql.Open("postgres", c.GetDSN())
			if err != nil {
				return err
			}
			defer db.Close()

			return goose.Up(db, ".")
		}),
	fx.Invoke(run),
)

func newRecorderConfig(cfg *config.Config) recorderimpl.Config {
	rc := recorderimpl.DefaultConfig(cfg.Recorder.ScratchDir)
	rc.Capture.InputFormat = cfg.Recorder.InputFormat
	rc.Capture.InputDevice = cfg.Recorder.InputDevice
	return rc
}

func newCaptureDevice(cfg *config.Config) recorder.CaptureDevice {
	return device.NewFFmpegCapture(cfg.Recorder.FFmpegPath)
}

func newEnvironment(cfg *config.Config) recorder.Environment {
	return device.NewEnv(cfg.Recorder.ScratchDir, func() bool {
		_, err := exec.LookPath(cfg.Recorder.FFmpegPath)
		return err == nil
	})
}

// loggingSink surfaces recording pipeline transitions in the logs.
type loggingSink struct {
	log logger.Logger
}

func newEventSink(log logger.Logger) recorder.EventSink {
	return loggingSink{log: log.WithComponent("RecordingEvents")}
}

func (s loggingSink) RecordingStateChanged(state domain.RecordingState, reason domain.RecordingReason) {
	s.log.Info("Recording state changed", "state", state, "reason", reason)
}

func (s loggingSink) RecordingAdvisory(advisory domain.RecordingAdvisory) {
	s.log.Info("Recording advisory", "advisory", advisory)
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, sched scheduler.Client) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go startHttpServer(log, cfg)

			if err := sched.SchedulePublishDueDrafts(ctx); err != nil {
				log.Error("Failed to start due-draft scheduler", "error", err)
				return err
			}
			if err := sched.ScheduleDatabaseCleanup(ctx); err != nil {
				log.Error("Failed to start cleanup scheduler", "error", err)
				return err
			}

			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startHttpServer(log logger.Logger, cfg *config.Config) {
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})

	log.Info(fmt.Sprintf("Starting server on :%d", cfg.App.Port))

	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), nil); err != nil {
		log.Error("Server failed to start: %v", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, logger logger.Logger) {
	logger.Info("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Error("Failed to write response", "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
