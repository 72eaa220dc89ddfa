// Command token signs a development access token for an account.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/jwt"
)

func main() {
	_ = godotenv.Load()

	acct := flag.String("account", "", "account address the token is issued to")
	roles := flag.String("roles", jwt.RoleSubscriber, "comma-separated roles")
	flag.Parse()

	addr, err := account.Parse(*acct)
	if err != nil {
		log.Fatalf("invalid -account: %v", err)
	}

	var cfg jwt.Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to read JWT config: %v", err)
	}

	manager, err := jwt.LoadAndBuild(cfg)
	if err != nil {
		log.Fatalf("failed to load keys: %v", err)
	}

	token, jti, err := manager.Generator.GenerateAccessToken(addr.String(), splitRoles(*roles))
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "jti=%s\n", jti)
	fmt.Println(token)
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
