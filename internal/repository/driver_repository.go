package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tricykol/auth-backend/internal/models"
)

// ErrDriverNotFound возвращается, когда профиль водителя не найден.
var ErrDriverNotFound = errors.New("driver not found")

// DriverRepository читает справочник профилей водителей. Подсистема
// аутентификации ничего в нём не меняет.
type DriverRepository struct {
	db *sqlx.DB
}

// NewDriverRepository создаёт экземпляр репозитория.
func NewDriverRepository(db *sqlx.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// FindByPhoneVariants ищет профиль по любому из текстовых представлений
// номера. Номера в таблице исторически лежат в разных формах, поэтому ищем
// сразу по всем вариантам, предпочитая более ранний в списке.
func (r *DriverRepository) FindByPhoneVariants(ctx context.Context, variants []string) (string, error) {
	var id string
	query := `
		SELECT id
		FROM drivers
		WHERE phone_number = ANY($1)
		ORDER BY array_position($1, phone_number)
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &id, query, pq.Array(variants)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrDriverNotFound
		}
		return "", fmt.Errorf("driver repository: find by phone: %w", err)
	}

	return id, nil
}

// GetByID возвращает профиль по идентификатору.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	var driver models.Driver
	query := `
		SELECT id, name, phone_number, is_verified, status, created_at, updated_at
		FROM drivers
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &driver, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("driver repository: get by id: %w", err)
	}

	return &driver, nil
}
