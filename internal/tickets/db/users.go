package db

import (
	"context"
	"database/sql"
	"errors"

	"ticketdesk/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

func (d *DB) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("username = ?", username).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) CreateUser(user models.User) error {
	_, err := d.Bun.NewInsert().Model(&user).Exec(context.Background())
	return err
}

func (d *DB) CountUsers() (int, error) {
	return d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Count(context.Background())
}
