package main

import (
	"context"

	"github.com/plgd-dev/websub-hub/hub/service"
	"github.com/plgd-dev/websub-hub/pkg/config"
	"github.com/plgd-dev/websub-hub/pkg/fsnotify"
	"github.com/plgd-dev/websub-hub/pkg/log"
	pkgService "github.com/plgd-dev/websub-hub/pkg/service"
)

func main() {
	var cfg service.Config
	if err := config.LoadAndValidateConfig(&cfg); err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	logger := log.NewLogger(cfg.Log)
	log.Set(logger)
	logger.Infof("config: %v", cfg.String())

	fileWatcher, err := fsnotify.NewWatcher(logger)
	if err != nil {
		log.Fatalf("cannot create file watcher: %v", err)
	}
	defer func() {
		if errC := fileWatcher.Close(); errC != nil {
			logger.Errorf("cannot close file watcher: %w", errC)
		}
	}()

	s, err := service.New(context.Background(), cfg, fileWatcher, logger)
	if err != nil {
		log.Fatalf("cannot create service: %v", err)
	}
	if err = pkgService.New(logger, s).Serve(); err != nil {
		log.Fatalf("unexpected ends: %v", err)
	}
}
