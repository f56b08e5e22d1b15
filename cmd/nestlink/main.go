/*
 * Copyright 2025 Ember Home, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberhome/nestlink/pkg/bridge"
	"github.com/emberhome/nestlink/pkg/config"
	"github.com/emberhome/nestlink/pkg/logger"
)

// Exit codes: 1 is a retryable startup failure the supervisor may back
// off and restart; 2 means the configured credentials were rejected and
// restarting will not help.
const (
	exitRetryable = 1
	exitFatal     = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "/etc/nestlink/nestlink.json", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.Config

	loader := &config.FileConfigLoader{}
	if err := loader.Load(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	mainLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	b := bridge.New(&cfg, mainLogger)

	if err := b.Start(ctx); err != nil {
		if bridge.IsFatal(err) {
			mainLogger.Error().Err(err).Msg("Credentials rejected, reconfiguration required")
			os.Exit(exitFatal)
		}

		mainLogger.Error().Err(err).Msg("Startup failed, will retry on restart")
		os.Exit(exitRetryable)
	}

	mainLogger.Info().Str("environment", cfg.Environment).Msg("nestlink bridge running")

	<-ctx.Done()
	stop()

	mainLogger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.Stop(shutdownCtx); err != nil {
		mainLogger.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}
