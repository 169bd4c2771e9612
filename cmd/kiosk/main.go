package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chaos-ops/display-server-go/internal/kiosk"
)

type kioskConfig struct {
	ServerURL           string `env:"SERVER_URL,required"`
	StateFile           string `env:"STATE_FILE" envDefault:".chaos-ops/display.json"`
	PollIntervalSeconds int    `env:"POLL_INTERVAL_SECONDS" envDefault:"5"`
	RequestTimeoutSecs  int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"10"`
	EnablePush          bool   `env:"ENABLE_PUSH" envDefault:"true"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"warn"`
}

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var cfg kioskConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	setLogLevel(cfg.LogLevel)

	client := kiosk.NewClient(cfg.ServerURL, time.Duration(cfg.RequestTimeoutSecs)*time.Second)
	store := kiosk.NewFileStore(cfg.StateFile)
	machine := kiosk.NewMachine(client, kiosk.SystemClock, store)
	renderer := kiosk.NewRenderer(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	nudge := make(chan struct{}, 1)
	if cfg.EnablePush {
		go listenForPush(ctx, client, machine, nudge)
	}

	machine.Run(ctx, time.Duration(cfg.PollIntervalSeconds)*time.Second, nudge, renderer.Render)
}

// listenForPush keeps a best-effort SSE subscription open and pokes the
// poll loop when anything arrives. Losing this stream costs at most one
// poll interval of latency.
func listenForPush(ctx context.Context, client *kiosk.Client, machine *kiosk.Machine, nudge chan<- struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}

		deviceID := machine.DeviceID()
		if deviceID == "" {
			// Not registered yet; check again shortly.
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		err := client.Listen(ctx, deviceID, func() {
			select {
			case nudge <- struct{}{}:
			default:
			}
		})
		if ctx.Err() != nil {
			return
		}
		log.Debug().Err(err).Msg("push stream dropped, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}
