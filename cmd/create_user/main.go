package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"finapi/pkg/apperr"
	"finapi/pkg/auth"
	"finapi/pkg/bootstrap"
	"finapi/pkg/config"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create_user <email> <password> [name]")
		os.Exit(2)
	}
	email := os.Args[1]
	password := os.Args[2]
	name := email
	if len(os.Args) > 3 {
		name = strings.Join(os.Args[3:], " ")
	} else if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
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
	sess, err := svc.Register(ctx, auth.RegisterInput{Name: name, Email: email, Password: password})
	switch {
	case apperr.KindOf(err) == apperr.KindConflict:
		fmt.Printf("user %s already exists\n", email)
		return
	case err != nil:
		log.Err(ctx, "create user", err)
		os.Exit(1)
	}
	fmt.Printf("created user %s id=%d\n", sess.User.Email, sess.User.ID)
}
