package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/tricykol/auth-backend/internal/models"
)

// ErrOTPNotFound возвращается, когда для номера нет выданного кода.
var ErrOTPNotFound = errors.New("otp not found")

// RedeemOutcome — исход атомарного погашения кода.
type RedeemOutcome int

const (
	// RedeemOK — код совпал и удалён; повторное погашение невозможно.
	RedeemOK RedeemOutcome = iota
	// RedeemNotFound — для номера нет выданного кода.
	RedeemNotFound
	// RedeemExpired — срок действия истёк; запись удалена.
	RedeemExpired
	// RedeemMismatch — код не совпал; запись сохранена для повторной попытки.
	RedeemMismatch
)

// OTPRepository отвечает за таблицу otps: по одной живой записи на номер.
// Ключ — сырая строка номера, как её прислал клиент; выдача и проверка
// обязаны использовать байт-в-байт одинаковую строку.
type OTPRepository struct {
	db *sqlx.DB
}

// NewOTPRepository создаёт экземпляр репозитория.
func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Put вставляет или замещает запись для номера. Замещение — это и есть
// политика единственного действующего кода: прежний код молча перестаёт
// приниматься.
func (r *OTPRepository) Put(ctx context.Context, otp *models.OTP) error {
	query := `
		INSERT INTO otps (phone, code_hash, gateway_message_id, gateway_status, recipient, network, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (phone) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
			gateway_message_id = EXCLUDED.gateway_message_id,
			gateway_status = EXCLUDED.gateway_status,
			recipient = EXCLUDED.recipient,
			network = EXCLUDED.network,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`

	if _, err := r.db.ExecContext(
		ctx, query,
		otp.Phone, otp.CodeHash, otp.GatewayMessageID, otp.GatewayStatus,
		otp.Recipient, otp.Network, otp.CreatedAt, otp.ExpiresAt,
	); err != nil {
		return fmt.Errorf("otp repository: put: %w", err)
	}

	return nil
}

// Get возвращает запись для номера.
func (r *OTPRepository) Get(ctx context.Context, phoneKey string) (*models.OTP, error) {
	var otp models.OTP
	query := `
		SELECT phone, code_hash, gateway_message_id, gateway_status, recipient, network, created_at, expires_at
		FROM otps
		WHERE phone = $1
	`
	if err := r.db.GetContext(ctx, &otp, query, phoneKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("otp repository: get: %w", err)
	}

	return &otp, nil
}

// Delete удаляет запись. Отсутствие записи не ошибка.
func (r *OTPRepository) Delete(ctx context.Context, phoneKey string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE phone = $1`, phoneKey); err != nil {
		return fmt.Errorf("otp repository: delete: %w", err)
	}
	return nil
}

// Redeem атомарно гасит код: читает запись под блокировкой строки, сравнивает
// код и удаляет при совпадении или истечении. Из N одновременных попыток с
// верным кодом ровно одна получит RedeemOK — остальные увидят RedeemNotFound.
// Несовпавший код запись не трогает: неистёкший код остаётся действительным
// для следующей попытки.
func (r *OTPRepository) Redeem(ctx context.Context, phoneKey, code string, now time.Time) (RedeemOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return RedeemNotFound, fmt.Errorf("otp repository: redeem begin: %w", err)
	}
	defer tx.Rollback()

	var otp models.OTP
	query := `
		SELECT phone, code_hash, gateway_message_id, gateway_status, recipient, network, created_at, expires_at
		FROM otps
		WHERE phone = $1
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &otp, query, phoneKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RedeemNotFound, nil
		}
		return RedeemNotFound, fmt.Errorf("otp repository: redeem get: %w", err)
	}

	if otp.Expired(now) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM otps WHERE phone = $1`, phoneKey); err != nil {
			return RedeemExpired, fmt.Errorf("otp repository: redeem expire delete: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return RedeemExpired, fmt.Errorf("otp repository: redeem commit: %w", err)
		}
		return RedeemExpired, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		return RedeemMismatch, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM otps WHERE phone = $1`, phoneKey); err != nil {
		return RedeemOK, fmt.Errorf("otp repository: redeem delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return RedeemOK, fmt.Errorf("otp repository: redeem commit: %w", err)
	}

	return RedeemOK, nil
}
