package database

import (
	"context"
	"fmt"
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"
)

func getCustomer(ctx context.Context, q querier, id int64) (*models.Customer, error) {
	var c models.Customer
	err := q.QueryRowContext(ctx, `SELECT id, customer_code, first_name, last_name, email, phone, created_at, updated_at
              FROM customers WHERE id = ?`, id).Scan(
		&c.ID, &c.Code, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

func (db *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	now := time.Now()
	result, err := db.ExecContext(ctx, `INSERT INTO customers (
				customer_code, first_name, last_name, email, phone, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Code, c.FirstName, c.LastName, c.Email, c.Phone, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("customer %q already exists: %w", c.Code, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (db *DB) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := getCustomer(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}
