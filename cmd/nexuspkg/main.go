package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexusos/nexuspkg/internal/cli"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"
)

func main() {
	// Setup logging format
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		stop()
		os.Exit(models.ExitCode(err))
	}
}
