package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/app/api"
)

func main() {
	// Local development convenience; production supplies real env vars.
	_ = godotenv.Load()

	if err := api.Run(context.Background()); err != nil {
		log.Fatalf("api exited: %v", err)
	}
}
