package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/pkg/jwt"
)

// dev-token mints an access token for local testing against a running server.
// The portal issues real tokens in every other environment.
func main() {
	var (
		secret   string
		userID   string
		schoolID string
		roles    string
		expiry   time.Duration
	)
	flag.StringVar(&secret, "secret", "", "JWT signing secret (defaults to JWT_SECRET)")
	flag.StringVar(&userID, "user", "", "user id (random when empty)")
	flag.StringVar(&schoolID, "school", "school-1", "school id")
	flag.StringVar(&roles, "roles", models.RoleStudent, "comma separated roles")
	flag.DurationVar(&expiry, "expiry", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		log.Fatal("JWT_SECRET is not set and -secret was not provided")
	}
	if os.Getenv("ENVIRONMENT") == "production" {
		log.Fatal("refusing to mint tokens with ENVIRONMENT=production")
	}

	id := uuid.New()
	if userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			log.Fatalf("invalid -user: %v", err)
		}
		id = parsed
	}

	token, err := jwt.NewService(secret, expiry).GenerateAccessToken(id, schoolID, splitRoles(roles))
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	fmt.Printf("# user=%s school=%s roles=%s\n", id, schoolID, roles)
	fmt.Println(token)
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
