package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/models"
)

func benchPopulation(n int) []models.User {
	users := make([]models.User, n)
	for i := range users {
		u := testUser(int64(i+1), fmt.Sprintf("Prénom%d", i), fmt.Sprintf("Nom%d", i), i%3 != 0, int64(i%4+1))
		u.Email = fmt.Sprintf("user%d@example.org", i)
		users[i] = u
	}
	return users
}

// BenchmarkCompute measures the filter pipeline over a large population
func BenchmarkCompute(b *testing.B) {
	users := benchPopulation(10000)
	state := FilterState{Search: "prenom1 example", Status: StatusActive}.WithRoles(Exclude, 2)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Compute(users, state)
	}
}

// BenchmarkBulk measures the fan-out against an in-memory gateway
func BenchmarkBulk(b *testing.B) {
	users := benchPopulation(1000)
	userIDs := VisibleIDs(users)

	for i := 0; i < b.N; i++ {
		gw := newFakeGateway(testRoles, users...)
		a := NewAssigner(gw, 16, zerolog.Nop())
		if _, err := a.Bulk(context.Background(), BulkRequest{RoleID: 3, UserIDs: userIDs, Action: ActionAssign}, nil); err != nil {
			b.Fatal(err)
		}
	}
}
