package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/allez-events/server/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
}

const userColumns = `id, auth_id, first_name, last_name, email, phone, gender,
       date_of_birth, address, city, state, country, zip, image_key,
       hosted_event_ids, cohosted_event_ids, attended_event_ids,
       created_at, updated_at`

const uniqueViolation = "23505"

func (r *UserRepository) Insert(ctx context.Context, user *users.User) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO users (id, auth_id, first_name, last_name, email, phone, gender,
                   date_of_birth, address, city, state, country, zip, image_key,
                   hosted_event_ids, cohosted_event_ids, attended_event_ids,
                   created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
        $17, $18, $19)
`,
		user.ID, user.AuthID, user.FirstName, user.LastName, user.Email,
		user.Phone, user.Gender, user.DateOfBirth,
		user.Address, user.City, user.State, user.Country, user.Zip,
		user.ImageKey, user.HostedEventIDs, user.CohostedEventIDs, user.AttendedEventIDs,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return users.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

// Update writes the profile fields. Membership lists are owned by the
// mutators below and are never written here.
func (r *UserRepository) Update(ctx context.Context, user *users.User) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
   SET first_name = $2, last_name = $3, email = $4, phone = $5, gender = $6,
       date_of_birth = $7, address = $8, city = $9, state = $10, country = $11,
       zip = $12, image_key = $13, updated_at = $14
 WHERE id = $1
`,
		user.ID, user.FirstName, user.LastName, user.Email, user.Phone,
		user.Gender, user.DateOfBirth,
		user.Address, user.City, user.State, user.Country, user.Zip,
		user.ImageKey, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return users.ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) AddHostedEvent(ctx context.Context, userID, eventID string) error {
	return r.addToList(ctx, "hosted_event_ids", userID, eventID)
}

func (r *UserRepository) RemoveHostedEvent(ctx context.Context, userID, eventID string) error {
	return r.removeFromList(ctx, "hosted_event_ids", userID, eventID)
}

func (r *UserRepository) AddCohostedEvent(ctx context.Context, userID, eventID string) error {
	return r.addToList(ctx, "cohosted_event_ids", userID, eventID)
}

func (r *UserRepository) RemoveCohostedEvent(ctx context.Context, userID, eventID string) error {
	return r.removeFromList(ctx, "cohosted_event_ids", userID, eventID)
}

func (r *UserRepository) AddAttendedEvent(ctx context.Context, userID, eventID string) error {
	return r.addToList(ctx, "attended_event_ids", userID, eventID)
}

func (r *UserRepository) RemoveAttendedEvent(ctx context.Context, userID, eventID string) error {
	return r.removeFromList(ctx, "attended_event_ids", userID, eventID)
}

// addToList appends with set semantics in a single statement; a second
// add of the same id is a no-op, not an error. column is one of the
// three membership columns, never user input.
func (r *UserRepository) addToList(ctx context.Context, column, userID, eventID string) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
UPDATE users
   SET %[1]s = CASE WHEN $2 = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $2) END,
       updated_at = now()
 WHERE id = $1
`, column), userID, eventID)
	if err != nil {
		return fmt.Errorf("add to %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) removeFromList(ctx context.Context, column, userID, eventID string) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
UPDATE users
   SET %[1]s = array_remove(%[1]s, $2), updated_at = now()
 WHERE id = $1
`, column), userID, eventID)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID, &user.AuthID, &user.FirstName, &user.LastName, &user.Email,
		&user.Phone, &user.Gender, &user.DateOfBirth,
		&user.Address, &user.City, &user.State, &user.Country, &user.Zip,
		&user.ImageKey, &user.HostedEventIDs, &user.CohostedEventIDs, &user.AttendedEventIDs,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.HostedEventIDs == nil {
		user.HostedEventIDs = []string{}
	}
	if user.CohostedEventIDs == nil {
		user.CohostedEventIDs = []string{}
	}
	if user.AttendedEventIDs == nil {
		user.AttendedEventIDs = []string{}
	}
	return &user, nil
}
