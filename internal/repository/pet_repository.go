package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/pet-registry/internal/domain"
)

// PetFilter narrows pet listings. Nil pointers mean "any".
type PetFilter struct {
	OwnerID         *string
	AnimalTypeID    *string
	Search          string
	IncludeInactive bool
	Limit           uint64
	Offset          uint64
}

// PetRepository defines persistence access for pets.
type PetRepository interface {
	Create(ctx context.Context, pet *domain.Pet) error
	Update(ctx context.Context, pet *domain.Pet) error
	GetByID(ctx context.Context, id string) (*domain.Pet, error)
	// GetForUpdate reads the pet and holds a row lock until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Pet, error)
	List(ctx context.Context, filter PetFilter) ([]domain.Pet, error)
	TransferOwnership(ctx context.Context, petID, newOwnerID string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
	SetPhoto(ctx context.Context, id, key string) error
}

type petRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var petColumns = []string{
	"id", "owner_id", "name", "animal_type_id", "breed_id", "sex",
	"birth_date", "emergency_phone", "address",
	"tattoos", "microchip", "neutered",
	"notes", "curp", "weight_kg", "height_cm", "photo_key",
	"is_active", "last_transferred_at", "created_at", "updated_at",
}

func (r *petRepository) Create(ctx context.Context, pet *domain.Pet) error {
	const query = `
        INSERT INTO pets (owner_id, name, animal_type_id, breed_id, sex, birth_date, emergency_phone, address,
                          tattoos, microchip, neutered, notes, curp, weight_kg, height_cm, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING id, created_at, updated_at`

	return r.exec.QueryRow(ctx, query,
		pet.OwnerID,
		pet.Name,
		pet.AnimalTypeID,
		pet.BreedID,
		pet.Sex,
		pet.BirthDate,
		pet.EmergencyPhone,
		pet.Address,
		pet.Tattoos,
		pet.Microchip,
		pet.Neutered,
		pet.Notes,
		pet.CURP,
		pet.WeightKg,
		pet.HeightCm,
		pet.IsActive,
	).Scan(&pet.ID, &pet.CreatedAt, &pet.UpdatedAt)
}

// Update writes the editable attributes. Ownership is changed only by
// TransferOwnership.
func (r *petRepository) Update(ctx context.Context, pet *domain.Pet) error {
	const query = `
        UPDATE pets SET name=$1, animal_type_id=$2, breed_id=$3, sex=$4, birth_date=$5, emergency_phone=$6,
                        address=$7, tattoos=$8, microchip=$9, neutered=$10, notes=$11, curp=$12,
                        weight_kg=$13, height_cm=$14, updated_at=NOW()
        WHERE id=$15 AND is_active
        RETURNING updated_at`

	err := r.exec.QueryRow(ctx, query,
		pet.Name,
		pet.AnimalTypeID,
		pet.BreedID,
		pet.Sex,
		pet.BirthDate,
		pet.EmergencyPhone,
		pet.Address,
		pet.Tattoos,
		pet.Microchip,
		pet.Neutered,
		pet.Notes,
		pet.CURP,
		pet.WeightKg,
		pet.HeightCm,
		pet.ID,
	).Scan(&pet.UpdatedAt)
	return mapNoRows(err)
}

func (r *petRepository) GetByID(ctx context.Context, id string) (*domain.Pet, error) {
	return r.getOne(ctx, id, "")
}

func (r *petRepository) GetForUpdate(ctx context.Context, id string) (*domain.Pet, error) {
	return r.getOne(ctx, id, "FOR UPDATE")
}

func (r *petRepository) getOne(ctx context.Context, id, suffix string) (*domain.Pet, error) {
	query := r.builder.Select(petColumns...).From("pets").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		query = query.Suffix(suffix)
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	pet, err := scanPet(r.exec.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return pet, nil
}

func (r *petRepository) List(ctx context.Context, filter PetFilter) ([]domain.Pet, error) {
	query := r.builder.Select(petColumns...).From("pets").OrderBy("created_at DESC", "id")

	if filter.OwnerID != nil {
		query = query.Where(squirrel.Eq{"owner_id": *filter.OwnerID})
	}
	if filter.AnimalTypeID != nil {
		query = query.Where(squirrel.Eq{"animal_type_id": *filter.AnimalTypeID})
	}
	if filter.Search != "" {
		query = query.Where(squirrel.ILike{"name": "%" + likeEscaper.Replace(filter.Search) + "%"})
	}
	if !filter.IncludeInactive {
		query = query.Where(squirrel.Eq{"is_active": true})
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pets []domain.Pet
	for rows.Next() {
		pet, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		pets = append(pets, *pet)
	}
	return pets, rows.Err()
}

func (r *petRepository) TransferOwnership(ctx context.Context, petID, newOwnerID string, at time.Time) error {
	const query = `
        UPDATE pets SET owner_id=$1, last_transferred_at=$2, updated_at=$2
        WHERE id=$3`

	cmd, err := r.exec.Exec(ctx, query, newOwnerID, at, petID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *petRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE pets SET is_active=FALSE, updated_at=NOW() WHERE id=$1 AND is_active`

	cmd, err := r.exec.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *petRepository) SetPhoto(ctx context.Context, id, key string) error {
	const query = `UPDATE pets SET photo_key=$1, updated_at=NOW() WHERE id=$2 AND is_active`

	cmd, err := r.exec.Exec(ctx, query, key, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// likeEscaper neutralizes LIKE wildcards using Postgres' default escape
// character so searches match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanPet(row pgx.Row) (*domain.Pet, error) {
	var pet domain.Pet
	if err := row.Scan(
		&pet.ID,
		&pet.OwnerID,
		&pet.Name,
		&pet.AnimalTypeID,
		&pet.BreedID,
		&pet.Sex,
		&pet.BirthDate,
		&pet.EmergencyPhone,
		&pet.Address,
		&pet.Tattoos,
		&pet.Microchip,
		&pet.Neutered,
		&pet.Notes,
		&pet.CURP,
		&pet.WeightKg,
		&pet.HeightCm,
		&pet.PhotoKey,
		&pet.IsActive,
		&pet.LastTransferredAt,
		&pet.CreatedAt,
		&pet.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &pet, nil
}
