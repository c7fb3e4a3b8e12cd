package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/jsarmiento/plata/internal/database/repository"
)

// SeedDefaults ensures baseline system categories exist for new databases.
// It is idempotent and safe to run on every startup. System categories are
// skipped by the backup importer, so the seed never collides with a merge.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	existing, err := catRepo.List(ctx)
	if err == nil && len(existing) > 0 {
		return nil
	}
	defaults := []string{
		"Sin categoría",
		"Ingresos",
		"Mercado",
		"Restaurantes",
		"Transporte",
		"Compras",
		"Servicios",
		"Salud",
		"Entretenimiento",
		"Transferencias",
	}
	for idx, name := range defaults {
		name = strings.TrimSpace(name)
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+name)).String()
		cat := repository.Category{ID: id, Name: name, SortOrder: idx, IsSystem: true}
		if err := catRepo.Upsert(ctx, cat); err != nil {
			return err
		}
	}
	return nil
}
