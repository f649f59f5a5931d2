package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tricykol/auth-backend/internal/logger"
	"github.com/tricykol/auth-backend/internal/models"
	"github.com/tricykol/auth-backend/internal/phone"
	"github.com/tricykol/auth-backend/internal/pkg/apperror"
	"github.com/tricykol/auth-backend/internal/repository"
	"github.com/tricykol/auth-backend/internal/sms"
)

// OTPStore описывает зависимости AuthService от хранилища одноразовых кодов.
// Redeem обязан быть атомарным на уровне хранилища: чтение, сравнение и
// удаление одним шагом, иначе два конкурентных запроса погасят один код
// дважды.
type OTPStore interface {
	Put(ctx context.Context, otp *models.OTP) error
	Delete(ctx context.Context, phoneKey string) error
	Redeem(ctx context.Context, phoneKey, code string, now time.Time) (repository.RedeemOutcome, error)
}

// DriverStore — поиск профилей водителей по вариантам номера.
type DriverStore interface {
	FindByPhoneVariants(ctx context.Context, variants []string) (string, error)
}

// AccountStore — справочник идентичностей.
type AccountStore interface {
	GetByPhoneVariants(ctx context.Context, variants []string) (*models.Account, error)
	CreateIfAbsent(ctx context.Context, account *models.Account) (*models.Account, error)
	TouchLastSignIn(ctx context.Context, uid string) error
}

// Gateway — SMS-провайдер, который генерирует и доставляет код.
type Gateway interface {
	Send(ctx context.Context, phoneDigits string) (*sms.SendResult, error)
}

// TokenMinter выпускает сессионный токен для uid.
type TokenMinter interface {
	Mint(uid, phoneNumber string) (string, error)
}

// AuthService реализует жизненный цикл OTP и сведение результата проверки к
// единой учётной записи.
type AuthService struct {
	otps     OTPStore
	drivers  DriverStore
	accounts AccountStore
	gateway  Gateway
	tokens   TokenMinter
	otpTTL   time.Duration
	log      *logrus.Entry
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(otps OTPStore, drivers DriverStore, accounts AccountStore, gateway Gateway, tokens TokenMinter, otpTTL time.Duration) *AuthService {
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	return &AuthService{
		otps:     otps,
		drivers:  drivers,
		accounts: accounts,
		gateway:  gateway,
		tokens:   tokens,
		otpTTL:   otpTTL,
		log:      logger.WithComponent("auth_service"),
	}
}

// VerifyInput — вход проверки кода. Phone обязан байт-в-байт совпадать со
// строкой, использованной при выдаче кода.
type VerifyInput struct {
	Phone          string
	Code           string
	IsRegistration bool
}

// VerifyResult — итог успешной проверки.
type VerifyResult struct {
	Token        string
	UID          string
	IsNewUser    bool
	DriverID     string
	NeedsProfile bool
}

// RequestOTP просит шлюз доставить код и фиксирует выданный код в хранилище.
// Новая выдача для того же номера замещает прежнюю запись: старый код
// перестаёт приниматься. Если после записи шлюз сообщает, что доставка
// заведомо не состоится, запись компенсирующе удаляется — в хранилище не
// должно оставаться кодов, которые никогда не были доставлены.
func (s *AuthService) RequestOTP(ctx context.Context, rawPhone string) error {
	nsn, ok := phone.NationalNumber(rawPhone)
	if !ok {
		return apperror.New(apperror.ErrCodeBadRequest, "phone format is not recognized")
	}

	res, err := s.gateway.Send(ctx, phone.CountryCode+nsn)
	if err != nil {
		// Запись ещё не создавалась — откатывать нечего.
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(res.Code), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
	}

	now := time.Now()
	record := &models.OTP{
		Phone:            rawPhone,
		CodeHash:         string(hash),
		GatewayMessageID: res.MessageID,
		GatewayStatus:    res.Status,
		Recipient:        res.Recipient,
		Network:          res.Network,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.otpTTL),
	}

	if err := s.otps.Put(ctx, record); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
	}

	if res.DeliveryFailed() {
		if delErr := s.otps.Delete(ctx, rawPhone); delErr != nil {
			s.log.WithError(delErr).WithField("message_id", res.MessageID).
				Error("failed to roll back otp record after delivery failure")
		}
		return apperror.GatewayUnavailable(fmt.Errorf("delivery failed with status %q", res.Status))
	}

	s.log.WithFields(logrus.Fields{
		"message_id": res.MessageID,
		"network":    res.Network,
		"status":     res.Status,
	}).Info("otp issued")

	return nil
}

// VerifyOTP гасит код и сводит исход к единой учётной записи: по четырём
// вариантам номера ищется профиль водителя, независимо — учётная запись, и
// по матрице решений выбирается uid, под который выпускается сессионный
// токен.
func (s *AuthService) VerifyOTP(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	// Шаг 1: атомарное погашение.
	outcome, err := s.otps.Redeem(ctx, in.Phone, in.Code, time.Now())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
	}

	switch outcome {
	case repository.RedeemNotFound:
		return nil, apperror.ErrNoPendingOTP
	case repository.RedeemExpired:
		return nil, apperror.ErrOTPExpired
	case repository.RedeemMismatch:
		return nil, apperror.ErrOTPMismatch
	}

	// Шаг 2: независимые запросы к профилям и учётным записям.
	variants := phone.Variants(in.Phone)

	driverID, err := s.drivers.FindByPhoneVariants(ctx, variants)
	driverExists := true
	if err != nil {
		if !errors.Is(err, repository.ErrDriverNotFound) {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
		}
		driverExists = false
	}

	account, err := s.accounts.GetByPhoneVariants(ctx, variants)
	authExists := true
	if err != nil {
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
		}
		authExists = false
	}

	// Шаг 3: матрица решений, первый подходящий ряд выигрывает.
	var (
		uid          string
		isNewUser    bool
		needsProfile bool
	)

	switch {
	case driverExists && authExists:
		uid = account.UID
		if uid != driverID {
			// Расхождение идентификаторов не чиним — фиксируем и продолжаем.
			s.log.WithFields(logrus.Fields{
				"auth_uid":  uid,
				"driver_id": driverID,
			}).Warn("driver profile id does not match account uid")
		}

	case driverExists && !authExists:
		// Учётной записи нет, профиль есть: создаём запись с uid, равным id
		// профиля, восстанавливая инвариант принадлежности.
		created, err := s.accounts.CreateIfAbsent(ctx, &models.Account{
			UID:         driverID,
			PhoneNumber: s.accountPhone(in.Phone),
		})
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
		}
		uid = created.UID

	case !driverExists && authExists && in.IsRegistration:
		// Идентичность есть, профиля нет: профиль должен создать вызывающий.
		uid = account.UID
		isNewUser = true
		needsProfile = true

	case !driverExists && !authExists && in.IsRegistration:
		created, err := s.accounts.CreateIfAbsent(ctx, &models.Account{
			UID:         uuid.NewString(),
			PhoneNumber: s.accountPhone(in.Phone),
		})
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
		}
		uid = created.UID
		isNewUser = true

	default:
		// Логин без профиля и без регистрационного намерения.
		return nil, apperror.ErrProfileNotFound
	}

	// Шаг 4: выпуск токена. Неудача фатальна для запроса; свежесозданная
	// учётная запись при этом намеренно остаётся — повторная проверка найдёт
	// её и пропустит создание.
	token, err := s.tokens.Mint(uid, s.accountPhone(in.Phone))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeTokenMintFailed, apperror.ErrTokenMintFailed.Message)
	}

	if err := s.accounts.TouchLastSignIn(ctx, uid); err != nil {
		s.log.WithError(err).WithField("uid", uid).Warn("failed to update last sign in")
	}

	resolvedProfileID := uid
	if driverExists {
		resolvedProfileID = driverID
	}

	return &VerifyResult{
		Token:        token,
		UID:          uid,
		IsNewUser:    isNewUser,
		DriverID:     resolvedProfileID,
		NeedsProfile: needsProfile,
	}, nil
}

// accountPhone приводит номер к форме E.164 для хранения в справочнике
// идентичностей; нераспознанная форма сохраняется как есть.
func (s *AuthService) accountPhone(rawPhone string) string {
	nsn, ok := phone.NationalNumber(rawPhone)
	if !ok {
		return rawPhone
	}
	return "+" + phone.CountryCode + nsn
}
