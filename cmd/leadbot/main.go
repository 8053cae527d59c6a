package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vektor-web/leadbot/internal/app"
	"github.com/vektor-web/leadbot/internal/config"
)

// main runs the service and exits on unrecoverable errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil && !errors.Is(errRun, context.Canceled) {
		log.WithError(errRun).Error("service failed")
		os.Exit(1)
	}
}

// run parses flags, loads config and starts the server until a signal
// arrives.
func run(args []string) error {
	fs := flag.NewFlagSet("leadbot", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "override the configured HTTP port")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	path := strings.TrimSpace(*cfgPath)
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, errLoad := config.Load(config.ResolveConfigPath(path))
	if errLoad != nil {
		return errLoad
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.RunServer(ctx, cfg, *port)
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
