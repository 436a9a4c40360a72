package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/role-assignment-api/internal/engine"
)

func (a *app) bulkCmd() *cobra.Command {
	var (
		filter   filterFlags
		role     string
		selected []int64
		all      bool
	)

	cmd := &cobra.Command{
		Use:       "bulk assign|remove",
		Short:     "Assign or remove one role for many users",
		ValidArgs: []string{"assign", "remove"},
		Args:      cobra.ExactArgs(1),
		Example: `  roleadmin bulk assign --target Tresorier --select 4,8,15
  roleadmin bulk remove --target member --status inactive --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := engine.ParseAction(args[0])
			if err != nil {
				return err
			}
			if all == (len(selected) > 0) {
				return &engine.ValidationError{Field: "selection", Message: "use exactly one of --all or --select"}
			}

			ctx := cmd.Context()
			s, err := a.loadSession(ctx, &filter)
			if err != nil {
				return err
			}
			ids, err := resolveRoles(s.Catalog(), []string{role})
			if err != nil {
				return err
			}

			if all {
				s.SelectAll(true)
			} else {
				for _, userID := range engine.NewIDSet(selected...).Slice() {
					if !s.Toggle(userID) {
						fmt.Fprintf(cmd.ErrOrStderr(), "user %d is not in the filtered list, skipped\n", userID)
					}
				}
			}

			res, err := s.Bulk(ctx, ids[0], action)
			if res != nil {
				name, _ := s.Catalog().Name(ids[0])
				if perr := a.printBulkResult(res, name); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	filter.register(cmd)
	cmd.Flags().StringVar(&role, "target", "", "Role to assign or remove, by name or id")
	cmd.Flags().Int64SliceVar(&selected, "select", nil, "User ids to select (must pass the filter)")
	cmd.Flags().BoolVar(&all, "all", false, "Select every user passing the filter")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
