package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"PowerLedger/internal/di"
	"PowerLedger/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Printf("powerledger: %v", err)
		os.Exit(1)
	}
}

// run blocks until the process receives SIGINT or SIGTERM. The structured
// logger only exists after wiring, so bootstrap failures go to the std log.
func run(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Printf("env=%s storage=%s redis=%t kafka=%t clickhouse=%t scheduler=%t",
		cfg.Environment, cfg.Storage.Type, cfg.Redis.Enabled, cfg.Kafka.Enabled,
		cfg.ClickHouse.Enabled, cfg.Scheduler.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return app.Run()
}
