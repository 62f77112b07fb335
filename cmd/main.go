package main

import (
	"context"
	"log"
	_ "time/tzdata"

	"github.com/Lina3386/moliya-bot/internal/app"
)

func main() {
	ctx := context.Background()

	a, err := app.NewApp(ctx)
	if err != nil {
		log.Fatalf("❌ failed to init app: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("❌ failed to run app: %v", err)
	}
}
