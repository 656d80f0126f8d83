// Command reviewctl mints bearer tokens and calls the review update endpoint.
//
//	reviewctl token --email alice@example.com
//	reviewctl update --token $TOKEN --id r1 --message "new text"
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/Skryldev/reviewkit/auth"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "reviewctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: reviewctl <token|update> [flags]")
	}

	switch args[0] {
	case "token":
		fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
		email := fs.String("email", "", "identity to issue the token for")
		secret := fs.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *secret == "" {
			return fmt.Errorf("token: --secret or JWT_SECRET is required")
		}
		token, err := auth.NewIssuer([]byte(*secret), *ttl).Issue(*email)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil

	case "update":
		fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
		baseURL := fs.String("url", "http://localhost:8080", "service base URL")
		token := fs.String("token", os.Getenv("REVIEWKIT_TOKEN"), "bearer token")
		id := fs.String("id", "", "review id")
		message := fs.String("message", "", "replacement message")
		timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		res, err := newClient(*baseURL, *timeout).updateReview(context.Background(), *token, *id, *message)
		if err != nil {
			return err
		}
		fmt.Printf("modified: %d\n", res.Modified)
		for _, r := range res.Original {
			fmt.Printf("  %s (product %s) was: %q\n", r.ID, r.Product, r.Message)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}
