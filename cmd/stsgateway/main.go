package main

import (
	"log"
	"os"

	"github.com/drblury/stsgateway/app"
	"github.com/drblury/stsgateway/bridge"
	"github.com/drblury/stsgateway/config"
)

func main() {
	path := os.Getenv("STS_CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	app.New(
		app.WithConfig(cfg),
		app.WithServices(bridge.Register),
	).Run()
}
