package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"classquiz-service/internal/app"
	"classquiz-service/internal/config"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/logging"
	"github.com/spf13/cobra"
)

// NewSeedCmd writes user profile records, for demos and local testing.
func NewSeedCmd(configPath *string) *cobra.Command {
	var users []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create user profiles given as id,name,email",
		Example: `  classquiz seed --user "u1,Grace Hopper,grace@example.com" --user "u2,Alan Turing,alan@example.com"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

			parsed := make([]domain.User, 0, len(users))
			for _, raw := range users {
				u, err := parseSeedUser(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, u)
			}

			store, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := app.New(store, app.WithLogger(log))
			for _, u := range parsed {
				created, err := svc.Users.CreateUser(cmd.Context(), u)
				if err != nil {
					return fmt.Errorf("seed %s: %w", u.ID, err)
				}
				log.Info("user seeded", slog.String("userId", created.ID), slog.String("name", created.Name))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&users, "user", nil, "user as id,name,email (repeatable)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func parseSeedUser(raw string) (domain.User, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 {
		return domain.User{}, fmt.Errorf("user %q: want id,name,email", raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" || parts[2] == "" {
		return domain.User{}, fmt.Errorf("user %q: id and email are required", raw)
	}
	return domain.User{ID: parts[0], Name: parts[1], Email: parts[2]}, nil
}
