package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/covercompare/membergate/internal/auth"
	"github.com/covercompare/membergate/internal/engine"
	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type profileFlags struct {
	id         string
	department string
	role       string
	exempt     bool
}

var profileOpts = &profileFlags{}

var createProfileCmd = &cobra.Command{
	Use:   "create-profile <username>",
	Short: "Create a pending profile in the configured store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(serveFlags)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		b, err := openBackend(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer b.Close()

		store := b.store
		if b.elevated != nil {
			store = b.elevated
		}
		p, err := createProfile(ctx, store, args[0], profileOpts, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.AccountID)
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <accountId>",
	Short: "Issue a bearer token for an account (development and tooling)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(serveFlags)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id: %w", err)
		}
		j, err := auth.NewJWT([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer)
		if err != nil {
			return err
		}
		tok, err := j.Issue(id, "", tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	createProfileCmd.Flags().StringVar(&profileOpts.id, "id", "", "account id (generated when empty)")
	createProfileCmd.Flags().StringVar(&profileOpts.department, "department", "", "department: "+strings.Join(schema.Departments, ", "))
	createProfileCmd.Flags().StringVar(&profileOpts.role, "role", string(schema.RoleMember), "admin|member")
	createProfileCmd.Flags().BoolVar(&profileOpts.exempt, "exempt", false, "protect the account from lifecycle changes")

	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func createProfile(ctx context.Context, store engine.ProfileStore, username string, f *profileFlags, now time.Time) (schema.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return schema.Profile{}, fmt.Errorf("username is required")
	}
	if !schema.IsValidDepartment(f.department) {
		return schema.Profile{}, fmt.Errorf("unknown department %q", f.department)
	}
	role := schema.Role(f.role)
	if !schema.IsValidRole(role) {
		return schema.Profile{}, fmt.Errorf("unknown role %q", f.role)
	}

	id := uuid.New()
	if f.id != "" {
		var err error
		if id, err = uuid.Parse(f.id); err != nil {
			return schema.Profile{}, fmt.Errorf("invalid id: %w", err)
		}
	}

	p := schema.NewProfile(id, username, now)
	p.Department = f.department
	p.Role = role
	p.Exempt = f.exempt
	if err := store.Create(ctx, p); err != nil {
		return schema.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	log.Info().Str("account_id", id.String()).Str("username", username).Str("role", f.role).Bool("exempt", f.exempt).Msg("Profile created")
	return p, nil
}
