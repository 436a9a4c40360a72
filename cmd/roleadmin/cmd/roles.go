package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/role-assignment-api/internal/engine"
)

func (a *app) rolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "roles",
		Aliases: []string{"role"},
		Short:   "List and edit roles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := a.client.ListRoles(cmd.Context())
			if err != nil {
				return err
			}
			return a.printRoles(roles)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a role with the next free id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := a.client.CreateRole(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "role %d %q created\n", role.ID, role.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleID, err := parseID("role", args[0])
			if err != nil {
				return err
			}
			role, err := a.client.RenameRole(cmd.Context(), roleID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "role %d renamed to %q\n", role.ID, role.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a role and every attribution of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleID, err := parseID("role", args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteRole(cmd.Context(), roleID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "role %d deleted\n", roleID)
			return nil
		},
	})

	return cmd
}

func parseID(field, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, &engine.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a valid id", s)}
	}
	return v, nil
}

// resolveRoles accepts role names or ids known to catalog
func resolveRoles(catalog *engine.RoleCatalog, refs []string) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		if v, err := strconv.ParseInt(ref, 10, 64); err == nil && catalog.Has(v) {
			ids = append(ids, v)
			continue
		}
		v, ok := catalog.ID(ref)
		if !ok {
			return nil, fmt.Errorf("%q: %w", ref, engine.ErrUnknownRole)
		}
		ids = append(ids, v)
	}
	return ids, nil
}
