package main

import (
	"flag"
	"log"

	"github.com/anthanhphan/go-shard-ring/internal/node/app"
)

func main() {
	var (
		configPath string
		name       string
		port       int
	)
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file, relative to the working directory")
	flag.StringVar(&name, "name", "", "Node name, overrides server.name")
	flag.IntVar(&port, "port", 0, "HTTP port, overrides server.port")
	flag.Parse()

	application, err := app.New(configPath, app.WithName(name), app.WithPort(port))
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
