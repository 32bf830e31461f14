package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

var models = []any{
	(*Language)(nil),
	(*Domain)(nil),
	(*RelationType)(nil),
	(*DictionaryItem)(nil),
	(*ServerRegistration)(nil),
}

// CreateSchema creates the tables of every reference repository that do not
// exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("repositories: create table for %T: %w", m, err)
		}
	}
	return nil
}
