package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/ride-dispatch/internal/domain"
)

// UserRepo reads the rider/driver identities rides refer to.
// Users are owned elsewhere; this API never writes them.
type UserRepo interface {
	// GetByID retrieves a single user by primary key.
	// Returns domain.ErrNotFound if no user with that ID exists.
	GetByID(ctx context.Context, id int64) (domain.User, error)
}

// pgUserRepo is the Postgres implementation of UserRepo.
type pgUserRepo struct {
	db db
}

// NewUserRepo constructs a UserRepo backed by the provided db connection.
func NewUserRepo(db db) UserRepo {
	return &pgUserRepo{db: db}
}

const userColumns = `
		u.id_user, u.role, u.first_name, u.last_name, u.email, u.phone_number`

// GetByID retrieves a user by primary key.
func (r *pgUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	q := `SELECT` + userColumns + `
		FROM users u
		WHERE u.id_user = @id`

	u, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByID: %w", err)
	}
	return u, nil
}

// scanUser maps a single userColumns row into a domain.User.
func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	err := s.Scan(&u.ID, &u.Role, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}
