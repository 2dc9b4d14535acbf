// Command server runs the enrichment scheduler and the session progress API.
//
// Configuration is read from CONFIG_PATH (default ./config.yaml) and
// environment variables; see internal/config.
package main

import (
	"context"
	"log"

	"github.com/heartmarshall/filmstats-backend/internal/app"
)

func main() {
	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("server: %v", err)
	}
}
