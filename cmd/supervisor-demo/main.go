// Command supervisor-demo wires the core supervisor package to a small
// worker pool, with the optional adminhttp and eventmirror packages
// attached. Structurally a generalization of the teacher's
// cmd/zmux-server/main.go entry point (logger construction, graceful
// startup/shutdown shape) to a process pool instead of an HTTP CRUD API.
package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/procpool/supervisor"
	"github.com/procpool/supervisor/adminhttp"
	"github.com/procpool/supervisor/eventmirror"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("main")

	var mirror *eventmirror.Mirror
	if addr := os.Getenv("SUPERVISOR_REDIS_ADDR"); addr != "" {
		client := eventmirror.NewClient(addr, 0, log)
		mirror = eventmirror.New(context.Background(), client, log)
		defer mirror.Close()
	}

	cfg := supervisor.Config{
		Command:           os.Getenv("SUPERVISOR_WORKER_COMMAND"),
		Min:               2,
		Max:               8,
		HeartbeatInterval: 10 * time.Second,
		HeartbeatCallback: func() {
			log.Debug("heartbeat")
		},
		OnChildMessage: func(c *supervisor.Child, msg any) {
			log.Info("child message", zap.Int("pid", c.Pid), zap.Any("msg", msg))
		},
		OnChildOutput: func(c *supervisor.Child, data []byte) {
			log.Debug("child output", zap.Int("pid", c.Pid), zap.Int("bytes", len(data)))
		},
	}
	if mirror != nil {
		cfg.OnChildCreate = mirror.OnChildCreate
		cfg.OnChildExit = mirror.OnChildExit
		cfg.OnChildSignal = mirror.OnChildSignal
	}
	if cfg.Command == "" {
		cfg.Command = "sh -c 'while true; do echo tick; sleep 1; done'"
	}

	sup := supervisor.New(cfg, log)

	if os.Getenv("SUPERVISOR_ADMIN_HTTP") != "" {
		admin := adminhttp.New(sup, log, adminhttp.Options{
			Addr:          os.Getenv("SUPERVISOR_ADMIN_HTTP"),
			MaxConcurrent: 100,
		})
		go func() {
			if err := admin.ListenAndServe(); err != nil {
				log.Error("admin http server failed", zap.Error(err))
			}
		}()
		defer admin.Close()
	}

	log.Info("starting supervisor")
	if err := sup.Run(); err != nil {
		log.Fatal("supervisor run failed", zap.Error(err))
	}
}
