package repository

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/spec-kit/pet-registry/internal/domain"
)

// ReferenceRepository reads animal type and breed reference data.
type ReferenceRepository interface {
	ListAnimalTypes(ctx context.Context) ([]domain.AnimalType, error)
	GetAnimalType(ctx context.Context, id string) (*domain.AnimalType, error)
	ListBreeds(ctx context.Context, animalTypeID string) ([]domain.Breed, error)
	GetBreed(ctx context.Context, id string) (*domain.Breed, error)
}

type referenceRepository struct {
	exec pgExecutor
}

type animalTypeRow struct {
	ID       string `db:"id"`
	Slug     string `db:"slug"`
	Name     string `db:"name"`
	IsActive bool   `db:"is_active"`
}

func (r animalTypeRow) toDomain() domain.AnimalType {
	return domain.AnimalType{ID: r.ID, Slug: r.Slug, Name: r.Name, IsActive: r.IsActive}
}

type breedRow struct {
	ID           string `db:"id"`
	AnimalTypeID string `db:"animal_type_id"`
	Name         string `db:"name"`
	IsActive     bool   `db:"is_active"`
}

func (r breedRow) toDomain() domain.Breed {
	return domain.Breed{ID: r.ID, AnimalTypeID: r.AnimalTypeID, Name: r.Name, IsActive: r.IsActive}
}

func (r *referenceRepository) ListAnimalTypes(ctx context.Context) ([]domain.AnimalType, error) {
	var rows []animalTypeRow
	if err := pgxscan.Select(ctx, r.exec, &rows,
		`SELECT id, slug, name, is_active FROM animal_types WHERE is_active ORDER BY name`); err != nil {
		return nil, err
	}

	types := make([]domain.AnimalType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.toDomain())
	}
	return types, nil
}

func (r *referenceRepository) GetAnimalType(ctx context.Context, id string) (*domain.AnimalType, error) {
	var row animalTypeRow
	if err := pgxscan.Get(ctx, r.exec, &row,
		`SELECT id, slug, name, is_active FROM animal_types WHERE id=$1`, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	at := row.toDomain()
	return &at, nil
}

func (r *referenceRepository) ListBreeds(ctx context.Context, animalTypeID string) ([]domain.Breed, error) {
	var rows []breedRow
	if err := pgxscan.Select(ctx, r.exec, &rows,
		`SELECT id, animal_type_id, name, is_active FROM breeds WHERE animal_type_id=$1 AND is_active ORDER BY name`,
		animalTypeID); err != nil {
		return nil, err
	}

	breeds := make([]domain.Breed, 0, len(rows))
	for _, row := range rows {
		breeds = append(breeds, row.toDomain())
	}
	return breeds, nil
}

func (r *referenceRepository) GetBreed(ctx context.Context, id string) (*domain.Breed, error) {
	var row breedRow
	if err := pgxscan.Get(ctx, r.exec, &row,
		`SELECT id, animal_type_id, name, is_active FROM breeds WHERE id=$1`, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b := row.toDomain()
	return &b, nil
}
