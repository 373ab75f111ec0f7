package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"finapi/pkg/auth"
	"finapi/pkg/bootstrap"
	"finapi/pkg/config"
)

func main() {
	email := flag.String("email", "", "email of the user to reset")
	password := flag.String("password", "", "new plaintext password (min 6 chars)")
	flag.Parse()
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "--email and --password are required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := bootstrap.Logger(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Err(ctx, "open store", err)
		os.Exit(1)
	}
	defer st.Close()

	svc := auth.NewService(st, auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL), cfg.RefreshTTL, log)
	if err := svc.SetPassword(ctx, *email, *password); err != nil {
		log.Err(ctx, "reset password", err, "email", *email)
		os.Exit(1)
	}
	fmt.Printf("Password reset for user %s\n", *email)
}
