// invite creates an invite from the command line and mails it.
// Run: go run ./cmd/invite -email someone@example.com [-name Ann] [-username ann]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/quicksand/config"
	"github.com/ErlanBelekov/quicksand/internal/email"
	"github.com/ErlanBelekov/quicksand/internal/infrastructure/storage"
	ctxlog "github.com/ErlanBelekov/quicksand/internal/log"
	"github.com/ErlanBelekov/quicksand/internal/token"
	"github.com/ErlanBelekov/quicksand/internal/usecase"
)

func main() {
	var in usecase.CreateInviteInput
	var noMail bool
	flag.StringVar(&in.Email, "email", "", "address to invite (required)")
	flag.StringVar(&in.Name, "name", "", "invitee's name")
	flag.StringVar(&in.Username, "username", "", "username to reserve for the invitee")
	flag.StringVar(&in.Nickname, "nickname", "", "nickname for the invitee")
	flag.BoolVar(&noMail, "no-mail", false, "print the link instead of sending it")
	flag.Parse()

	if in.Email == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := ctxlog.New(os.Stderr, cfg.Env, cfg.SlogLevel())

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer store.Close()

	codec, err := token.NewCodec(cfg.TokenConfig())
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	invites := usecase.NewInviteUsecase(store, codec, sender, cfg.EmailHost, logger)

	inv, err := invites.CreateInvite(ctx, in)
	if err != nil {
		log.Fatalf("create invite: %v", err)
	}

	if noMail {
		fmt.Println(cfg.EmailHost + "/api/auth/invite?token=" + inv.Token)
		return
	}
	if err := invites.SendInviteEmail(ctx, inv); err != nil {
		log.Printf("invite %d created, email deferred to the mailer: %v", inv.ID, err)
		return
	}
	fmt.Printf("invite %d sent to %s\n", inv.ID, in.Email)
}
