// Command tokengen prints a signed token for manual websocket testing:
//
//	go run ./cmd/tools/tokengen -id 42
//	wscat -c "ws://localhost:4000/ws?token=$(go run ./cmd/tools/tokengen -id 42)"
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/social-chat/backend/internal/config"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/service/auth"
)

func main() {
	var (
		id  = flag.Int64("id", 0, "user id to embed in the token")
		ttl = flag.Duration("ttl", 0, "token lifetime (default TOKEN_TTL, 168h)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadAuth()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	userID := chat.UserID(*id)
	if !userID.Valid() {
		log.Fatal("-id must be a positive user id")
	}

	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewIssuer(cfg.Secret, lifetime).Issue(userID)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
	log.Printf("token for user %d expires %s", userID, time.Now().Add(lifetime).Format(time.RFC3339))
}
