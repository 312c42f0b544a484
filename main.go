/*
Builds a ray tracing scene and prints the shader binding table layout.
With -watch the scene is rebuilt every time its file changes.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-rt/engine"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/testbed"
)

func main() {
	scenePath := flag.String("scene", "assets/scenes/demo.rtscene", "path of the .rtscene file")
	watch := flag.Bool("watch", false, "rebuild the scene when the file changes")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	tb := testbed.NewTestGame(*scenePath, *watch, os.Stdout)
	tb.ApplicationConfig.LogLevel = *logLevel

	engine, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%s", err.Error())
	}

	if err := engine.Initialize(); err != nil {
		_ = engine.Shutdown()
		core.LogFatal("%s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := engine.Run(ctx); err != nil {
		core.LogError("%s", err.Error())
	}
	cancel()
	if err := engine.Shutdown(); err != nil {
		core.LogFatal("%s", err.Error())
	}
}
