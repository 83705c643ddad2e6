package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Questionary/internal/auth"
)

// NewTokenCmd создаёт команду выпуска токена для разработки и отладки.
// Секрет должен совпадать с JWT_SECRET сервера.
func NewTokenCmd(outputFn func() *Output) *cobra.Command {
	var (
		userID int64
		roles  []string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with the server secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}

			p := auth.Principal{UserID: userID}
			for _, r := range roles {
				role := auth.Role(r)
				switch role {
				case auth.RoleUser, auth.RoleUserOfficer, auth.RoleReviewer:
				default:
					return fmt.Errorf("unknown role %q", r)
				}
				p.Roles = append(p.Roles, role)
			}

			tok, err := auth.IssueToken(p, ttl, secret)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(map[string]any{"token": tok, "user_id": userID, "roles": p.Roles, "expires_in": ttl.String()})
				return nil
			}
			out.Line(tok)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User ID (required)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{string(auth.RoleUser)}, "Roles: USER, USER_OFFICER, REVIEWER (repeatable)")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HS256 secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("user")

	return cmd
}
