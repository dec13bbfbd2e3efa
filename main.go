package main

import (
	"log"

	"pricing-scenario-lab/app"
	"pricing-scenario-lab/config"
)

func main() {
	// Load config from .env file
	cfg := config.LoadFromEnv()

	// Create and start app
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := application.Start(); err != nil {
		log.Fatal(err)
	}
}
