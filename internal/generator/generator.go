// Package generator produces the synthetic rows the demo endpoints work
// with: a fixed user batch for seeding and randomized orders.
package generator

import (
	"fmt"
	"math"

	"loadlab/internal/domain"
	"loadlab/internal/random"
)

// SeedUserCount is the size of the fixed startup batch; generated orders
// reference user ids in [1, SeedUserCount].
const SeedUserCount = 10

var firstNames = []string{
	"Alice", "Bob", "Carol", "Dave", "Erin",
	"Frank", "Grace", "Heidi", "Ivan", "Judy",
}

var products = []string{
	"Laptop", "Phone", "Tablet", "Monitor", "Keyboard",
	"Mouse", "Headphones", "Webcam", "Dock", "Charger",
}

// Users returns the fixed seed batch. Emails are unique and stable so
// conflict-ignore seeding stays idempotent across restarts.
func Users() []domain.User {
	users := make([]domain.User, SeedUserCount)
	for i := range users {
		name := firstNames[i%len(firstNames)]
		users[i] = domain.User{
			Name:  name,
			Email: fmt.Sprintf("%s%d@example.com", name, i+1),
			Age:   20 + (i*5)%50,
		}
	}
	return users
}

// Orders generates n random orders with price uniform in [10, 1000],
// rounded to cents, referencing seeded user ids.
func Orders(src *random.Source, n int) []domain.Order {
	orders := make([]domain.Order, n)
	for i := range orders {
		price := 10 + src.Float64()*990
		orders[i] = domain.Order{
			UserID:  src.IntBetween(1, SeedUserCount),
			Product: products[src.IntN(len(products))],
			Price:   math.Round(price*100) / 100,
		}
	}
	return orders
}
