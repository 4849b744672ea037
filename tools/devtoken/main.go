package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/config"
)

// devtoken mints an HS256 bearer token for calling the services locally.
func main() {
	var (
		secret   = flag.String("secret", config.String("JWT_SECRET", ""), "HS256 signing secret")
		business = flag.String("business-id", config.String("BUSINESS_ID", ""), "business_id claim")
		user     = flag.String("user-id", config.String("USER_ID", "dev-user"), "sub claim")
		role     = flag.String("role", auth.RoleOwner, "role claim")
		perms    = flag.String("permissions", "", "comma-separated permissions")
		ttl      = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("JWT_SECRET is required")
	}
	if strings.TrimSpace(*business) == "" {
		fatal("BUSINESS_ID is required")
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		BusinessID:  *business,
		Role:        *role,
		Permissions: splitList(*perms),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Println(token)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fatal(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
