package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/solomatovs/gauss/internal/config"
	"github.com/solomatovs/gauss/internal/engine"
	"github.com/solomatovs/gauss/internal/logging"

	_ "github.com/solomatovs/gauss/plugins/codec/json"
	_ "github.com/solomatovs/gauss/plugins/codec/protobuf"
	_ "github.com/solomatovs/gauss/plugins/format/avro"
	_ "github.com/solomatovs/gauss/plugins/format/csv"
	_ "github.com/solomatovs/gauss/plugins/format/json"
	_ "github.com/solomatovs/gauss/plugins/format/protobuf"
	_ "github.com/solomatovs/gauss/plugins/framing/lengthprefixed"
	_ "github.com/solomatovs/gauss/plugins/framing/lines"
	_ "github.com/solomatovs/gauss/plugins/middleware/crypt"
	_ "github.com/solomatovs/gauss/plugins/middleware/gzip"
	_ "github.com/solomatovs/gauss/plugins/processor/symbolfilter"
	_ "github.com/solomatovs/gauss/plugins/storage/memory"
	_ "github.com/solomatovs/gauss/plugins/storage/postgres"
	_ "github.com/solomatovs/gauss/plugins/storage/redis"
	_ "github.com/solomatovs/gauss/plugins/transport/nats"
	_ "github.com/solomatovs/gauss/plugins/transport/tcp"
)

func main() {
	logging.Initialize(getEnv("GAUSS_LOG_LEVEL", "info"), getEnv("GAUSS_LOG_PRETTY", "") == "true")
	log := logging.Component("main")

	settings := config.LoadSettings()
	log.Info().Str("config_file", settings.ConfigFile).Str("plugin_dir", settings.PluginDir).Msg("starting gauss")

	cfg, err := config.Load(settings.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	eng, err := engine.Bootstrap(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap engine")
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info().Msg("received SIGHUP, reloading configuration")
			newCfg, err := config.Load(settings.ConfigFile)
			if err != nil {
				log.Error().Err(err).Msg("reload aborted: failed to load configuration")
				continue
			}
			if err := eng.Reload(newCfg); err != nil {
				log.Error().Err(err).Msg("reload failed")
				continue
			}
			log.Info().Msg("reload complete")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	eng.Shutdown()
	log.Info().Msg("shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
