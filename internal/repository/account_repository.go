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

// ErrAccountNotFound возвращается, когда учётной записи нет.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository отвечает за таблицу accounts — справочник идентичностей,
// привязанных к номерам телефонов. Записи отсюда никогда не удаляются.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository создаёт экземпляр репозитория.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByPhoneVariants возвращает учётную запись по любому из представлений
// номера.
func (r *AccountRepository) GetByPhoneVariants(ctx context.Context, variants []string) (*models.Account, error) {
	var account models.Account
	query := `
		SELECT uid, phone_number, created_at, last_sign_in_at
		FROM accounts
		WHERE phone_number = ANY($1)
		ORDER BY array_position($1, phone_number)
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &account, query, pq.Array(variants)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("account repository: get by phone: %w", err)
	}

	return &account, nil
}

// GetByUID возвращает учётную запись по идентификатору.
func (r *AccountRepository) GetByUID(ctx context.Context, uid string) (*models.Account, error) {
	var account models.Account
	query := `
		SELECT uid, phone_number, created_at, last_sign_in_at
		FROM accounts
		WHERE uid = $1
	`
	if err := r.db.GetContext(ctx, &account, query, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("account repository: get by uid: %w", err)
	}

	return &account, nil
}

// CreateIfAbsent создаёт учётную запись, если для номера её ещё нет, и
// возвращает итоговую запись. При гонке двух регистраций одного номера
// вставка у проигравшего молча не происходит, и он получает запись
// победителя — дублей не возникает.
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (uid, phone_number, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (phone_number) DO NOTHING
		RETURNING uid, phone_number, created_at, last_sign_in_at
	`

	var created models.Account
	err := r.db.GetContext(ctx, &created, query, account.UID, account.PhoneNumber)
	if err == nil {
		return &created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account repository: create: %w", err)
	}

	// Вставка не прошла из-за конфликта — читаем победившую запись.
	existing, err := r.GetByPhoneVariants(ctx, []string{account.PhoneNumber})
	if err != nil {
		return nil, fmt.Errorf("account repository: create conflict read: %w", err)
	}

	return existing, nil
}

// TouchLastSignIn отмечает момент успешного входа.
func (r *AccountRepository) TouchLastSignIn(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_sign_in_at = NOW() WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("account repository: touch last sign in: %w", err)
	}
	return nil
}
