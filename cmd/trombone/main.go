package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/johanneshilden/trombone"
	"github.com/johanneshilden/trombone/config"
)

var (
	configFile = flag.String("config", "", "server configuration file")
	address    = flag.String("address", "", "listener address, overrides the configuration")
	routesFile = flag.String("routes", "", "routes file, overrides the configuration")
	logLevel   = flag.String("loglevel", "", "application log level [debug|info|warn|error]")
)

func main() {
	flag.Parse()

	c, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	if *address != "" {
		c.Address = *address
	}

	if *routesFile != "" {
		c.RoutesFile = *routesFile
	}

	if *logLevel != "" {
		c.Log.Level = *logLevel
	}

	if err := trombone.Run(c); err != nil {
		log.Fatal(err)
	}
}
