package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/minisitedb/internal/logging"
	"github.com/localnerve/minisitedb/internal/testhelpers"
	"github.com/rs/zerolog/log"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	usage := `
Run the minisitedb MariaDB and Redis testcontainers with the environment variables from the .env file.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	logging.Init("development", "info")

	if envFilename != "" {
		log.Info().Str("file", envFilename).Msg("Loading environment variables")
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatal().Err(err).Msg("Failed to load environment variables")
		}
	} else {
		log.Info().Msg("No environment file specified, using current environment variables")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGQUIT)

	started := make(chan *testhelpers.TestContainers, 1)
	go func() {
		testContainers, err := testhelpers.CreateAllTestContainers(nil)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create test containers")
		}
		started <- testContainers
	}()

	var testContainers *testhelpers.TestContainers
	select {
	case testContainers = <-started:
		log.Info().Msg("Containers ready, press Ctrl-C to stop")
		sig := <-sigs
		log.Info().Str("signal", sig.String()).Msg("Terminating test containers")
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("Interrupted before containers were ready")
	}

	if testContainers != nil {
		testContainers.Terminate(nil)
	}
}
