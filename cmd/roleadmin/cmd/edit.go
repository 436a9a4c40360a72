package cmd

import (
	"github.com/spf13/cobra"

	"github.com/role-assignment-api/internal/engine"
	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/validation"
)

func (a *app) editCmd() *cobra.Command {
	var (
		roles []string
		scope []string
		patch models.UserPatchRequest
	)

	cmd := &cobra.Command{
		Use:   "edit USER_ID",
		Short: "Edit a user and reconcile its roles",
		Long: `Edit a user's fields and set its roles to exactly --roles. With --scope only
the listed roles are added or removed; roles outside the scope are kept as
they are.`,
		Example: `  roleadmin edit 12 --roles admin,member
  roleadmin edit 12 --roles Tresorier --scope Tresorier,member --email new@example.org`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}

			all, err := a.client.ListRoles(ctx)
			if err != nil {
				return err
			}
			catalog := engine.NewRoleCatalog(all)

			var scopeIDs engine.IDSet
			if cmd.Flags().Changed("scope") {
				ids, err := resolveRoles(catalog, scope)
				if err != nil {
					return err
				}
				scopeIDs = engine.NewIDSet(ids...)
			}

			editor := engine.NewUserEditor(a.client, a.assigner(), validation.NewValidator(), a.log)
			if _, err := editor.StartEdit(ctx, userID, scopeIDs); err != nil {
				return err
			}
			if cmd.Flags().Changed("roles") {
				ids, err := resolveRoles(catalog, roles)
				if err != nil {
					return err
				}
				if err := editor.SetRoles(ids...); err != nil {
					return err
				}
			}

			for flag, dst := range map[string]**string{
				"firstname": &patch.Firstname,
				"lastname":  &patch.Lastname,
				"email":     &patch.Email,
				"telephone": &patch.Telephone,
				"birthday":  &patch.Birthday,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*dst = &v
				}
			}
			if err := editor.SetPatch(patch); err != nil {
				return err
			}

			user, err := editor.Save(ctx)
			if err != nil {
				return err
			}
			return a.printUsers([]models.User{*user}, catalog)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&roles, "roles", nil, "Desired roles by name or id; empty clears them")
	f.StringSliceVar(&scope, "scope", nil, "Only change these roles")
	f.String("firstname", "", "New first name")
	f.String("lastname", "", "New last name")
	f.String("email", "", "New email")
	f.String("telephone", "", "New telephone")
	f.String("birthday", "", "New birthday as YYYY-MM-DD")
	return cmd
}
