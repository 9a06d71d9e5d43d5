package main

import (
	"os"

	"github.com/dkeye/Consult/cmd"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("consult failed")
		os.Exit(1)
	}
}
