package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"courier-driver/internal/domain/user"
	"courier-driver/internal/general/jwt"
)

// GenerateUserToken mints a JWT for a seeded account. Dev and test use only:
// the real backend issues tokens at login.
func GenerateUserToken(secret, userID, roleStr string, ttl time.Duration) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	token, claims, err := jwt.NewManager(secret, ttl).IssueUserToken(userID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}
	return token, *claims, nil
}

// PrintToken writes the token and its claims the way the token tools show them.
func PrintToken(w io.Writer, token string, claims jwt.Claims) {
	fmt.Fprintln(w, "TOKEN:")
	fmt.Fprintln(w, token)
	fmt.Fprintln(w, "\nCLAIMS:")
	fmt.Fprintf(w, "  sub:  %s\n", claims.Subject)
	fmt.Fprintf(w, "  role: %s\n", claims.Role)
	fmt.Fprintf(w, "  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}

func NewTokenCommand() *cobra.Command {
	var (
		userID string
		role   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Mint a development JWT for a driver account",
		Args:    cobra.NoArgs,
		Example: `  courier-driver token --user-id=drv-42 --role=livreur --secret=dev-secret`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, claims, err := GenerateUserToken(secret, userID, role, ttl)
			if err != nil {
				return err
			}
			PrintToken(cmd.OutOrStdout(), token, claims)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Subject of the token")
	cmd.Flags().StringVar(&role, "role", string(user.RoleDriver), "Role: driver | livreur | requester | supplier | admin")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 2*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}
