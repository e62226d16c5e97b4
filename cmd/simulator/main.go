package main

import (
	"context"
	"log"
	"os"
	"time"

	"caretalk/simulator"
)

func main() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required to mint simulator tokens")
	}

	config := simulator.SimConfig{
		NumPairs:         25,
		SimulationTime:   10 * time.Minute,
		MessageFrequency: 120.0,
		ReadFrequency:    60.0,
		DisconnectRate:   0.01,
		ReconnectRate:    0.05,
		ServerURL:        "http://localhost:8080",
		JWTSecret:        jwtSecret,
	}
	if url := os.Getenv("SERVER_URL"); url != "" {
		config.ServerURL = url
	}

	log.Printf("Starting simulation with configuration:")
	log.Printf("- Server URL: %s", config.ServerURL)
	log.Printf("- Conversation pairs: %d", config.NumPairs)
	log.Printf("- Simulation time: %v", config.SimulationTime)
	log.Printf("- Message frequency: %.2f messages/user/hour", config.MessageFrequency)
	log.Printf("- Read frequency: %.2f reads/user/hour", config.ReadFrequency)
	log.Printf("- Disconnect rate: %.2f", config.DisconnectRate)
	log.Printf("- Reconnect rate: %.2f", config.ReconnectRate)

	sim := simulator.NewSimulator(config)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	metrics := sim.GetMetrics()
	log.Printf("\nSimulation completed. Final metrics:")
	log.Printf("- Total requests: %d", metrics.TotalRequests)
	log.Printf("- Successful: %d", metrics.SuccessRequests)
	log.Printf("- Failed: %d", metrics.FailedRequests)
	log.Printf("- Messages sent: %d", metrics.TotalMessages)
	log.Printf("- Mark-read calls: %d", metrics.TotalReads)
	log.Printf("- Average latency: %v", sim.AverageLatency())
}
