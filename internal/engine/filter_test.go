package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/role-assignment-api/internal/models"
)

func population() []models.User {
	alice := testUser(1, "Alice", "Martin", true, 1, 3)
	alice.Email = "alice@example.org"
	jose := testUser(2, "José", "Núñez", true, 2)
	jose.Email = "jn@example.org"
	jose.Telephone = "0612345678"
	bob := testUser(3, "Bob", "Durand", false, 3)
	bob.Birthday = "1990-04-12"
	carol := testUser(4, "Carol", "Lefèvre", true)
	carol.FirstLogin = models.NewFlag(true)
	// no isactive field at all
	dan := testUser(5, "Dan", "Petit", true, 4)
	dan.Active = nil
	return []models.User{alice, jose, bob, carol, dan}
}

func ids(users []models.User) []int64 {
	return VisibleIDs(users)
}

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name   string
		status StatusFilter
		want   []int64
	}{
		{name: "all keeps everyone", status: StatusAll, want: []int64{1, 2, 3, 4, 5}},
		{name: "active keeps missing flag", status: StatusActive, want: []int64{1, 2, 4, 5}},
		{name: "inactive", status: StatusInactive, want: []int64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(population(), FilterState{Status: tt.status})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestComputeRoleFilter(t *testing.T) {
	tests := []struct {
		name  string
		state FilterState
		want  []int64
	}{
		{name: "include overlaps", state: FilterState{}.WithRoles(Include, 3), want: []int64{1, 3}},
		{name: "include any of several", state: FilterState{}.WithRoles(Include, 2, 4), want: []int64{2, 5}},
		{name: "exclude drops holders", state: FilterState{}.WithRoles(Exclude, 3), want: []int64{2, 4, 5}},
		{name: "exclude keeps users without roles", state: FilterState{}.WithRoles(Exclude, 1, 2, 3, 4), want: []int64{4}},
		{name: "empty ids include is a no-op", state: FilterState{}.WithRoles(Include), want: []int64{1, 2, 3, 4, 5}},
		{name: "empty ids exclude is a no-op", state: FilterState{}.WithRoles(Exclude), want: []int64{1, 2, 3, 4, 5}},
		{name: "unknown role includes nobody", state: FilterState{}.WithRoles(Include, 99), want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(population(), tt.state)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRoleFilterPartitionsPopulation(t *testing.T) {
	users := population()
	for _, roleSet := range [][]int64{{1}, {2, 3}, {4}, {1, 2, 3, 4}} {
		in := Compute(users, FilterState{}.WithRoles(Include, roleSet...))
		out := Compute(users, FilterState{}.WithRoles(Exclude, roleSet...))
		assert.Len(t, users, len(in)+len(out), "roles %v", roleSet)

		seen := NewIDSet(ids(in)...)
		for _, id := range ids(out) {
			assert.False(t, seen.Has(id), "user %d in both partitions", id)
		}
	}
}

func TestComputeSearch(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{name: "diacritics stripped from field", query: "jose", want: []int64{2}},
		{name: "diacritics stripped from query", query: "NÚÑEZ", want: []int64{2}},
		{name: "tokens across fields", query: "alice example.org", want: []int64{1}},
		{name: "every token must match", query: "alice durand", want: []int64{}},
		{name: "full name", query: "bob durand", want: []int64{3}},
		{name: "id or any digit field", query: "4", want: []int64{2, 3, 4}},
		{name: "telephone", query: "06123", want: []int64{2}},
		{name: "birthday", query: "1990-04", want: []int64{3}},
		{name: "status label", query: "inactive", want: []int64{3}},
		{name: "first login label", query: "first", want: []int64{4}},
		{name: "lefevre without accent", query: "lefevre", want: []int64{4}},
		{name: "blank query is a no-op", query: "   ", want: []int64{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(population(), FilterState{Search: tt.query})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestComputeStagesCombine(t *testing.T) {
	users := population()

	state := FilterState{Search: "example.org", Status: StatusActive}.WithRoles(Include, 2)
	assert.Equal(t, []int64{2}, ids(Compute(users, state)))

	t.Run("match any ors role and search", func(t *testing.T) {
		p := Pipeline{Match: MatchAny}
		state := FilterState{Search: "carol", Status: StatusActive}.WithRoles(Include, 1)
		assert.Equal(t, []int64{1, 4}, ids(p.Compute(users, state)))
	})

	t.Run("match any still requires status", func(t *testing.T) {
		p := Pipeline{Match: MatchAny}
		state := FilterState{Search: "bob", Status: StatusActive}.WithRoles(Include, 1)
		assert.Equal(t, []int64{1}, ids(p.Compute(users, state)))
	})

	t.Run("match any with a single active stage", func(t *testing.T) {
		p := Pipeline{Match: MatchAny}
		state := FilterState{}.WithRoles(Include, 4)
		assert.Equal(t, []int64{5}, ids(p.Compute(users, state)))
	})
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	users := population()
	before := ids(users)

	_ = Compute(users, FilterState{Search: "alice", Status: StatusInactive}.WithRoles(Exclude, 1))

	assert.Equal(t, before, ids(users))
	assert.Len(t, users[0].Roles, 2)
}

func TestComputeCustomSelectors(t *testing.T) {
	p := Pipeline{Selectors: []Selector{
		func(u *models.User) []string { return u.RoleNames() },
	}}
	got := p.Compute(population(), FilterState{Search: "tresor"})
	assert.Equal(t, []int64{2}, ids(got))
}

func TestNormalizeAndTokenize(t *testing.T) {
	assert.Equal(t, "jose", Normalize("José"))
	assert.Equal(t, "francoise", Normalize("FRANÇOISE"))
	assert.Equal(t, []string{"eleve", "noel"}, Tokenize("  Élève\tNoël "))
	assert.Empty(t, Tokenize(""))
}

func TestFilterStateEqual(t *testing.T) {
	base := FilterState{Search: "a"}
	assert.True(t, base.Equal(base.WithRoles(Exclude)), "empty role filters compare equal whatever the mode")
	assert.False(t, base.Equal(base.WithStatus(StatusActive)))
	assert.False(t, base.WithRoles(Include, 1).Equal(base.WithRoles(Exclude, 1)))
	assert.True(t, base.WithRoles(Include, 1, 2).Equal(base.WithRoles(Include, 2, 1)))
}

func TestParseStatusFilter(t *testing.T) {
	s, err := ParseStatusFilter("Inactive")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, s)

	s, err = ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, StatusAll, s)

	_, err = ParseStatusFilter("sleeping")
	assert.Error(t, err)
}
