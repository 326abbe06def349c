// Small helper to mint JWT bearer tokens for local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/allez-events/server/internal/auth"
)

func main() {
	subject := flag.String("subject", "auth0|dev-user", "token subject (provider|key)")
	expiry := flag.Duration("expiry", 24*time.Hour, "token lifetime")
	issuer := flag.String("issuer", "allez-server", "token issuer")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	manager := auth.NewJWTManager(secret, *expiry, *issuer)
	token, err := manager.Generate(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("JWT Token:")
	fmt.Println(token)
	fmt.Println("\nTest with:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/users\n", token)
}
