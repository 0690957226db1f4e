package db

import (
	"context"
	"fmt"

	"github.com/diewo77/invoice-dashboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoCustomers are inserted by Seed so a fresh database has something to
// invoice.
var DemoCustomers = []models.Customer{
	{ID: "3958dc9e-712f-4377-85e9-fec4b6a6442a", Name: "Delba de Oliveira", Email: "delba@oliveira.com", ImageURL: "/customers/delba-de-oliveira.png"},
	{ID: "3958dc9e-742f-4377-85e9-fec4b6a6442a", Name: "Lee Robinson", Email: "lee@robinson.com", ImageURL: "/customers/lee-robinson.png"},
	{ID: "3958dc9e-737f-4377-85e9-fec4b6a6442a", Name: "Hector Simpson", Email: "hector@simpson.com", ImageURL: "/customers/hector-simpson.png"},
	{ID: "50ca3e18-62cd-11ee-8c99-0242ac120002", Name: "Steven Tey", Email: "steven@tey.com", ImageURL: "/customers/steven-tey.png"},
	{ID: "3958dc9e-787f-4377-85e9-fec4b6a6442a", Name: "Steph Dietz", Email: "steph@dietz.com", ImageURL: "/customers/steph-dietz.png"},
	{ID: "76d65c26-f784-44a2-ac19-586678f7c2f2", Name: "Michael Novotny", Email: "michael@novotny.com", ImageURL: "/customers/michael-novotny.png"},
}

// Seed inserts the demo customers, skipping ids that already exist.
func Seed(ctx context.Context, conn *gorm.DB) (int64, error) {
	customers := make([]models.Customer, len(DemoCustomers))
	copy(customers, DemoCustomers)
	res := conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&customers)
	if res.Error != nil {
		return 0, fmt.Errorf("seed customers: %w", res.Error)
	}
	return res.RowsAffected, nil
}
