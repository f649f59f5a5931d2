package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tricykol/auth-backend/internal/models"
)

// AuditRepository пишет журнал событий OTP. Только вставка.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository создаёт экземпляр репозитория.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert добавляет запись журнала.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO otp_audit (phone, action, outcome, detail, ip_address)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(
		ctx, query,
		entry.Phone, entry.Action, entry.Outcome, entry.Detail, entry.IPAddress,
	); err != nil {
		return fmt.Errorf("audit repository: insert: %w", err)
	}

	return nil
}
