package persistence

import (
	"context"
	"database/sql"

	"insight-hub/domain/model"
)

// UserRepository resolves operator accounts for the auth middleware.
type UserRepository struct{ db *sql.DB }

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUserName(ctx context.Context, userName string) (model.User, error) {
	var user model.User
	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.user_name, u.created_at, u.updated_at
		 FROM public.user AS u WHERE u.user_name = $1`, userName)
	err := row.Scan(&user.ID, &user.Name, &user.UserName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return user, err
	}
	return user, nil
}
