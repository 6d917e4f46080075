package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/anirudhraja/devwire/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Logger.Error("run command failed", zap.Error(err))
		os.Exit(1)
	}
}
