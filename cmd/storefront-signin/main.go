// Command storefront-signin signs in to the storefront auth service with a
// raw private key and prints the resulting session as JSON.
//
//	STOREFRONT_URL=http://localhost:9000 WALLET_PRIVATE_KEY=ac09... storefront-signin
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/layer-3/storefront"
	"github.com/layer-3/storefront/internal/eth"
)

func main() {
	baseURL := os.Getenv("STOREFRONT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}

	key := strings.TrimPrefix(os.Getenv("WALLET_PRIVATE_KEY"), "0x")
	if key == "" {
		log.Fatal("WALLET_PRIVATE_KEY is required")
	}

	wallet, err := eth.WalletFromHex(key)
	if err != nil {
		log.Fatalf("failed to load wallet: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := storefront.NewClient(baseURL).SignIn(ctx, wallet)
	if err != nil {
		if expected, received, ok := storefront.IsInvalidSignature(err); ok {
			log.Fatalf("signature rejected: expected %s, received %s", expected, received)
		}
		log.Fatalf("sign-in failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(session); err != nil {
		log.Fatalf("failed to write session: %v", err)
	}
}
