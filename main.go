package main

import (
	"log"
	"os"

	"github.com/avstrong/staycal/internal/app"
	"github.com/avstrong/staycal/internal/config"
	"github.com/avstrong/staycal/internal/logger"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(conf.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	var exitCode int

	if err := app.Run(l, conf); err != nil {
		l.LogErrorf("Failed to run app: %v", err.Error())

		exitCode = 1
	}

	l.Sync()
	os.Exit(exitCode)
}
