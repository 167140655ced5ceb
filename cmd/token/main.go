// Command token prints a session token for local testing of the API.
//
//	go run ./cmd/token -user u1 -email u1@example.com
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/mrsidrdx/context-graph-ai/infrastructure/config"
	"github.com/mrsidrdx/context-graph-ai/pkg/auth"
)

func main() {
	userID := flag.String("user", "", "user id placed in the sub claim")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "name claim")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to the configured session TTL)")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	expiry := cfg.Auth.SessionTTL
	if *ttl > 0 {
		expiry = *ttl
	}

	generator, err := auth.NewJWTGenerator(auth.JWTConfig{
		SecretKey:  cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.JWTIssuer,
		ExpiryTime: expiry,
	})
	if err != nil {
		log.Fatalf("Failed to create token generator: %v", err)
	}

	token, err := generator.GenerateToken(*userID, *email, *name)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
	log.Printf("expires %s", time.Now().Add(expiry).Format(time.RFC3339))
}
