package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/role-assignment-api/internal/engine"
	"github.com/role-assignment-api/internal/models"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type tableWriter struct {
	w *tabwriter.Writer
}

func newTable(w io.Writer, headers ...string) *tableWriter {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return &tableWriter{w: tw}
}

func (t *tableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *tableWriter) Flush() {
	t.w.Flush()
}

func (a *app) printRoles(roles []models.Role) error {
	if a.output == outputJSON {
		return printJSON(a.out, roles)
	}
	t := newTable(a.out, "ID", "ROLE")
	for _, r := range roles {
		t.AddRow(fmtID(r.ID), r.Name)
	}
	t.Flush()
	return nil
}

// printUsers names roles from catalog when given, since freshly assigned
// roles may not carry names yet
func (a *app) printUsers(users []models.User, catalog *engine.RoleCatalog) error {
	if a.output == outputJSON {
		return printJSON(a.out, users)
	}
	t := newTable(a.out, "ID", "USERNAME", "NAME", "STATUS", "FIRST LOGIN", "ROLES")
	for i := range users {
		u := &users[i]
		names := u.RoleNames()
		if catalog != nil {
			names = catalog.Names(engine.NewIDSet(u.RoleIDs()...))
		}
		t.AddRow(fmtID(u.ID), u.Username, u.FullName(), status(u), yesNo(u.IsFirstLogin()), strings.Join(names, ", "))
	}
	t.Flush()
	return nil
}

func (a *app) printAttributions(attrs []models.RoleAttribution) error {
	if a.output == outputJSON {
		return printJSON(a.out, attrs)
	}
	t := newTable(a.out, "ID", "USER", "USERNAME", "NAME", "ROLE")
	for _, at := range attrs {
		t.AddRow(fmtID(at.ID), fmtID(at.UserID), at.Username, strings.TrimSpace(at.Firstname+" "+at.Lastname), at.Role)
	}
	t.Flush()
	return nil
}

func (a *app) printBulkResult(res *engine.BulkResult, role string) error {
	if a.output == outputJSON {
		return printJSON(a.out, res)
	}
	fmt.Fprintf(a.out, "%s %s: %d succeeded, %d skipped, %d failed (operation %s, %s)\n",
		res.Action, role, len(res.Succeeded), len(res.Skipped), len(res.Failed), res.OperationID, res.Duration.Round(time.Millisecond))
	if len(res.Failed) > 0 {
		fmt.Fprintf(a.out, "failed users: %s\n", joinIDs(res.Failed))
	}
	return nil
}

func fmtID(v int64) string {
	return strconv.FormatInt(v, 10)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, v := range ids {
		parts[i] = fmtID(v)
	}
	return strings.Join(parts, ",")
}

func status(u *models.User) string {
	if u.IsActive() {
		return models.StatusActive
	}
	return models.StatusInactive
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
