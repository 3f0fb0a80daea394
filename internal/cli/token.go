package cli

import (
	"fmt"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Subject string
	Email   string
	StoreID string
	TTL     time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local development",
		Long: `Sign an HS256 access token with JWT_SECRET.

The subject must match a profile id for the API to resolve a store.`,
		Example: "  kuctl token --subject 00000000-0000-0000-0000-000000000002 --store store-1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "", "profile id (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.StoreID, "store", "", "store_id claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "token lifetime (default JWT_ACCESS_TTL)")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runToken(cmd *cobra.Command, opts *TokenOptions) error {
	cfg := opts.config()
	ttl := cfg.JWTAccessTTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	auth := service.NewAuthService(cfg.JWTSecret, ttl, zap.NewNop())
	token, err := auth.SignAccessToken(opts.Subject, opts.Email, opts.StoreID)
	if err != nil {
		return NewFailure("sign token", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, map[string]any{
			"accessToken": token,
			"expiresAt":   time.Now().Add(ttl).UTC().Format(time.RFC3339),
		})
	}
	fmt.Fprintln(out, token)
	return nil
}
