package main

import (
	"context"
	"log"

	"sanbot-be/internal/bootstrap"
	"sanbot-be/internal/config"
	"sanbot-be/internal/server"
	"sanbot-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	if container.NatsPublisher != nil {
		defer container.NatsPublisher.Close()
	}

	// 3. Start Background Workers
	go func() {
		log.Println("Background: Starting Analysis Workers...")
		if err := container.AnalysisService.Consume(context.Background()); err != nil {
			log.Printf("Background Analysis Error: %v", err)
		}
	}()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
