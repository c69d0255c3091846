// Command tokengen signs a development access token with the configured JWT
// secret, standing in for the external identity provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"bakery_ops_backend/internal/config"
	"bakery_ops_backend/pkg/utils"
)

func main() {
	configFile := flag.String("config", utils.Getenv("CONFIG_FILE", "config.yaml"), "path to the YAML config file")
	userID := flag.String("user", "", "user id (required)")
	bakeryID := flag.String("bakery", "", "bakery id the token is scoped to")
	role := flag.String("role", "owner", "role claim")
	admin := flag.Bool("admin", false, "issue a platform administrator token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	utils.InitLogger("warn", true)

	if *userID == "" || (*bakeryID == "" && !*admin) {
		fmt.Fprintln(os.Stderr, "usage: tokengen -user <id> (-bakery <id> | -admin) [-role owner] [-ttl 24h]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	utils.ConfigureJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	token, err := utils.GenerateAccessToken(*userID, *bakeryID, *role, *admin, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}
	fmt.Println(token)
}
