package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"musicaldb_backend/platform/config"
	"musicaldb_backend/platform/httpkit"

	"github.com/google/uuid"
)

// devtoken mints an access token for local testing of the upload API.
func main() {
	userFlag := flag.String("user", "", "user id (random when empty)")
	rolesFlag := flag.String("roles", "user", "comma separated roles, e.g. user,admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	userID := uuid.New()
	if *userFlag != "" {
		userID, err = uuid.Parse(*userFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -user:", err)
			os.Exit(2)
		}
	}

	var roles []string
	for _, role := range strings.Split(*rolesFlag, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}

	token, err := httpkit.SignAccessToken(cfg.GetJWTAccessSecret(), userID, roles, cfg.GetAccessTokenTTL())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to sign token:", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user %s roles %v\n", userID, roles)
	fmt.Println(token)
}
