package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"buddydesk/internal/config"
	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/pkg/jwt"
	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/server"
)

type demoBuddy struct {
	name     string
	email    string
	phone    string
	calendly string
	active   bool
}

var demoBuddies = []demoBuddy{
	{"Asha Menon", "asha@buddydesk.local", "+91 98450 11111", "https://calendly.com/asha-buddy", true},
	{"Rohan Iyer", "rohan@buddydesk.local", "+91 98450 22222", "https://calendly.com/rohan-buddy", true},
	{"Meera Pillai", "meera@buddydesk.local", "", "https://calendly.com/meera-buddy", true},
	{"Karan Shah", "karan@buddydesk.local", "", "https://calendly.com/karan-buddy", false},
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	operator := flag.String("admin", "ops@buddydesk.local", "operator named in the printed admin token")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed admin token")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      "console",
	})

	db, err := database.Connect(cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	requireResource(ctx, logg, "schema", server.PrepareSchema(ctx, db, cfg.DB.URL))

	svc := buddy.NewService(buddy.NewRepository(db), buddyrequest.NewRepository(db, nil), logg)

	created := 0
	for _, d := range demoBuddies {
		active := d.active
		req := &buddy.CreateBuddyRequest{
			Name:         d.name,
			Email:        d.email,
			CalendlyLink: d.calendly,
			IsActive:     &active,
		}
		if d.phone != "" {
			phone := d.phone
			req.Phone = &phone
		}

		_, err := svc.Create(ctx, req)
		switch {
		case errors.Is(err, buddy.ErrEmailExists):
			logg.Info(logg.WithField(ctx, "email", d.email), "buddy already seeded")
		case err != nil:
			requireResource(ctx, logg, "buddy "+d.email, err)
		default:
			created++
		}
	}
	logg.Info(logg.WithField(ctx, "created", created), "buddies seeded")

	token, err := jwt.New(cfg.Auth.JWTSecret, *tokenTTL).IssueAdminToken(*operator, cfg.Auth.AdminRole)
	requireResource(ctx, logg, "admin token", err)

	fmt.Println("admin token (Authorization: Bearer ...):")
	fmt.Println(token)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
