package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/role-assignment-api/internal/engine"
	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/validation"
)

// filterFlags mirrors engine.FilterState on the command line
type filterFlags struct {
	query    string
	status   string
	roles    []string
	exclude  bool
	matchAny bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Search names, username, email, phone, roles and status")
	cmd.Flags().StringVar(&f.status, "status", models.StatusAll, "Status filter: all, active, inactive")
	cmd.Flags().StringSliceVar(&f.roles, "role", nil, "Role filter by name or id (repeatable)")
	cmd.Flags().BoolVar(&f.exclude, "exclude", false, "Drop holders of --role instead of keeping them")
	cmd.Flags().BoolVar(&f.matchAny, "match-any", false, "Keep users passing either the role filter or the search")
}

// loadSession fetches the population and applies the filter. The role
// filter needs the catalog, so a pushed-down role query costs a second fetch.
func (a *app) loadSession(ctx context.Context, f *filterFlags) (*engine.Session, error) {
	status, err := engine.ParseStatusFilter(f.status)
	if err != nil {
		return nil, &engine.ValidationError{Field: "status", Message: err.Error()}
	}

	s := engine.NewSession(a.client, a.assigner(), a.log)
	if f.matchAny {
		s.SetMatchMode(engine.MatchAny)
	}
	state := engine.FilterState{Search: f.query, Status: status}
	s.SetFilter(state)
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	if len(f.roles) > 0 {
		ids, err := resolveRoles(s.Catalog(), f.roles)
		if err != nil {
			return nil, err
		}
		mode := engine.Include
		if f.exclude {
			mode = engine.Exclude
		}
		if s.SetFilter(state.WithRoles(mode, ids...)) {
			if err := s.Refresh(ctx); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (a *app) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "List, create and deactivate users",
	}

	var filter filterFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List users passing the filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadSession(cmd.Context(), &filter)
			if err != nil {
				return err
			}
			return a.printUsers(s.Visible(), s.Catalog())
		},
	}
	filter.register(list)
	cmd.AddCommand(list)

	cmd.AddCommand(a.userCreateCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "roles ID",
		Short: "List the roles held by a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			roles, err := a.client.UserRoles(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return a.printRoles(roles)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate a user; roles are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeactivateUser(cmd.Context(), userID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "user %d deactivated\n", userID)
			return nil
		},
	})

	return cmd
}

func (a *app) userCreateCmd() *cobra.Command {
	var (
		req    models.UserCreateRequest
		roles  []string
		active bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and assign roles",
		Long: `Create a user. The username is generated by the server from the
initials and the birth year. Roles given with --role are assigned after
creation; if one fails the user still exists and the command can be re-run
with "edit".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			all, err := a.client.ListRoles(ctx)
			if err != nil {
				return err
			}
			catalog := engine.NewRoleCatalog(all)
			ids, err := resolveRoles(catalog, roles)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("active") {
				req.Active = models.NewFlag(active)
			}

			editor := engine.NewUserEditor(a.client, a.assigner(), validation.NewValidator(), a.log)
			if err := editor.StartCreate(req, engine.NewIDSet(ids...), nil); err != nil {
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
	f.StringVar(&req.Firstname, "firstname", "", "First name(s)")
	f.StringVar(&req.Lastname, "lastname", "", "Last name(s)")
	f.StringVar(&req.Birthday, "birthday", "", "Birthday as YYYY-MM-DD")
	f.StringVar(&req.Email, "email", "", "Email address")
	f.StringVar(&req.Telephone, "telephone", "", "Telephone number")
	f.StringVar(&req.ContributionTier, "contribution-tier", "", "Contribution tier")
	f.BoolVar(&active, "active", false, "Create the user active")
	f.StringSliceVar(&roles, "role", nil, "Role to assign by name or id (repeatable)")
	return cmd
}
