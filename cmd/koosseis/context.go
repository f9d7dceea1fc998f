package main

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"koosseis/internal/config"
	"koosseis/internal/logger"
	"koosseis/internal/storage"
)

type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	log        *log.Logger
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		c.config = &cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *log.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		if cfg == nil {
			c.log = logger.New(logger.Config{Output: os.Stderr})
			return
		}
		c.log = logger.New(logger.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, Output: os.Stderr})
	})
	return c.log
}

func (c *commandContext) withDB(fn func(*storage.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
