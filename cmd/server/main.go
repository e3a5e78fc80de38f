// The server command is the main entrypoint for running the game backend.
// It takes care of initializing everything and running the server until it
// is signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core"
)

var configFlag = flag.String("config", "./", "Path to the directory containing the server config file")

func main() {
	flag.Parse()

	// A .env file is optional; environment overrides also work without one.
	if err := godotenv.Load(); err == nil {
		fmt.Println("loaded environment overrides from .env")
	}

	config := core.LoadConfig(*configFlag)
	fmt.Println("using configuration file:", *configFlag)

	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if err := os.Chdir(filepath.Dir(*configFlag)); err != nil {
		fmt.Println("error changing to config directory:", err)
		os.Exit(1)
	}

	// Bind the Controller to one top-level server context so that we can
	// shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())

	// Register a SIGTERM handler so that Ctrl-C will shut the server down
	// gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	// Start up the controller to handle all of the resources and server init.
	controller := &internal.Controller{Config: config}
	if err := controller.Start(ctx); err != nil {
		fmt.Println("server failed to start:", err)
		os.Exit(1)
	}

	fmt.Println("shut down")
}

func exitHandler(cancelFn func(), c chan os.Signal) {
	<-c
	fmt.Println("waiting to shut down gracefully...")
	cancelFn()

	// A second signal skips the graceful drain.
	<-c
	fmt.Println("hard exiting (killed)")
	os.Exit(1)
}
