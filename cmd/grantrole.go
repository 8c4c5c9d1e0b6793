package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arrively-api/auth"
	"arrively-api/models"
)

var grantRoleName string

// grantRoleCmd promotes or demotes an account. Staff review driver documents
// and work support tickets as agents.
var grantRoleCmd = &cobra.Command{
	Use:   "grant-role <email>",
	Short: "Set the role of an account and end its current sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := models.UserRole(grantRoleName)
		if !role.Valid() {
			return fmt.Errorf("role must be %q or %q", models.RoleUser, models.RoleStaff)
		}
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		id, err := auth.NewDBIdentityStore(e.db).Grant(cmd.Context(), args[0], role)
		if errors.Is(err, auth.ErrUnknownAccount) {
			return fmt.Errorf("no account with email %s", args[0])
		}
		if err != nil {
			return err
		}
		e.log.Info("role granted", zap.String("user_id", id.Subject), zap.String("role", id.Role))
		fmt.Fprintf(cmd.OutOrStdout(), "user %s is now %s\n", id.Subject, id.Role)
		return nil
	},
}

func init() {
	grantRoleCmd.Flags().StringVar(&grantRoleName, "role", string(models.RoleStaff), "role to grant (user or staff)")
}
