package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"umisu/src/agent"
	"umisu/src/config"
	"umisu/src/logging"
	"umisu/src/platform"
	"umisu/src/render"
)

const (
	exitSuccess = 0
	exitError   = 1
)

func init() {
	// GLFW and the Vulkan surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stdout, "Error: %s\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

func run() (err error) {
	cfg, err := config.FromEnvironment()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := platform.Init(); err != nil {
		return err
	}
	defer platform.Terminate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := agent.NewVulkan(cfg, log)
	if err := a.Init(); err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	log.Info("running", zap.String("title", cfg.Window.Title))
	return a.Run(ctx, render.NoDraw)
}
