package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/flowgate/flowgate/core/gateway"
	"github.com/flowgate/flowgate/core/infra/buildinfo"
	"github.com/flowgate/flowgate/core/infra/config"
)

func main() {
	_ = godotenv.Load()

	log.Println("flowgate gateway starting...")
	buildinfo.Log("flowgate-gateway")
	cfg := config.Load()
	if err := gateway.Run(cfg); err != nil {
		log.Fatalf("gateway error: %v", err)
	}
}
