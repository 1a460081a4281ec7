// cmd/devtoken/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"billing-service/internal/config"
	"billing-service/internal/pkg/jwt"
)

// devtoken mints an HS256 access token for calling the API locally.
func main() {
	userID := flag.String("user", "", "user id (uuid); a random one when empty")
	email := flag.String("email", "dev@example.com", "email claim")
	name := flag.String("name", "Local Developer", "full name claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadAuth()
	if err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ refusing to mint tokens in production")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("❌ AUTH_JWT_SECRET is required to mint tokens")
	}

	if *userID == "" {
		*userID = uuid.NewString()
	} else if _, err := uuid.Parse(*userID); err != nil {
		log.Fatalf("❌ user id must be a uuid: %v", err)
	}

	gen := jwt.NewGenerator([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.Audience, *ttl)
	token, jti, err := gen.Generate(*userID, *email, *name)
	if err != nil {
		log.Fatalf("❌ failed to sign token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "user_id=%s jti=%s expires_in=%s\n", *userID, jti, *ttl)
	fmt.Println(token)
}
