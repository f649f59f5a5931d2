package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tricykol/auth-backend/internal/models"
	"github.com/tricykol/auth-backend/internal/pkg/apperror"
	"github.com/tricykol/auth-backend/internal/repository"
	"github.com/tricykol/auth-backend/internal/sms"
)

// mockOTPStore — потокобезопасное in-memory хранилище с той же семантикой
// погашения, что и у Postgres репозитория: сравнение и удаление под одной
// блокировкой.
type mockOTPStore struct {
	mu      sync.Mutex
	records map[string]*models.OTP
}

func newMockOTPStore() *mockOTPStore {
	return &mockOTPStore{records: make(map[string]*models.OTP)}
}

func (m *mockOTPStore) Put(ctx context.Context, otp *models.OTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *otp
	m.records[otp.Phone] = &cp
	return nil
}

func (m *mockOTPStore) Delete(ctx context.Context, phoneKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, phoneKey)
	return nil
}

func (m *mockOTPStore) Redeem(ctx context.Context, phoneKey, code string, now time.Time) (repository.RedeemOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	otp, ok := m.records[phoneKey]
	if !ok {
		return repository.RedeemNotFound, nil
	}
	if otp.Expired(now) {
		delete(m.records, phoneKey)
		return repository.RedeemExpired, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		return repository.RedeemMismatch, nil
	}
	delete(m.records, phoneKey)
	return repository.RedeemOK, nil
}

// putCode кладёт запись с захешированным кодом напрямую, минуя выдачу.
func (m *mockOTPStore) putCode(t *testing.T, phoneKey, code string, expiresAt time.Time) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	m.records[phoneKey] = &models.OTP{
		Phone:     phoneKey,
		CodeHash:  string(hash),
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
}

func (m *mockOTPStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockDriverStore — профили водителей, ключ — номер в том виде, в котором
// он "лежит в таблице".
type mockDriverStore struct {
	byPhone map[string]string
}

func (m *mockDriverStore) FindByPhoneVariants(ctx context.Context, variants []string) (string, error) {
	for _, v := range variants {
		if id, ok := m.byPhone[v]; ok {
			return id, nil
		}
	}
	return "", repository.ErrDriverNotFound
}

// mockAccountStore — справочник идентичностей с create-if-absent семантикой.
type mockAccountStore struct {
	mu      sync.Mutex
	byPhone map[string]*models.Account
	byUID   map[string]*models.Account
	touched []string
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		byPhone: make(map[string]*models.Account),
		byUID:   make(map[string]*models.Account),
	}
}

func (m *mockAccountStore) add(account *models.Account) {
	m.byPhone[account.PhoneNumber] = account
	m.byUID[account.UID] = account
}

func (m *mockAccountStore) GetByPhoneVariants(ctx context.Context, variants []string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range variants {
		if acc, ok := m.byPhone[v]; ok {
			return acc, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountStore) CreateIfAbsent(ctx context.Context, account *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byPhone[account.PhoneNumber]; ok {
		return existing, nil
	}
	cp := *account
	cp.CreatedAt = time.Now()
	m.byPhone[cp.PhoneNumber] = &cp
	m.byUID[cp.UID] = &cp
	return &cp, nil
}

func (m *mockAccountStore) TouchLastSignIn(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, uid)
	return nil
}

// fakeGateway отдаёт заранее заданный результат или ошибку.
type fakeGateway struct {
	result *sms.SendResult
	err    error
	calls  []string
}

func (f *fakeGateway) Send(ctx context.Context, phoneDigits string) (*sms.SendResult, error) {
	f.calls = append(f.calls, phoneDigits)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// failingMinter всегда отказывает в выпуске токена.
type failingMinter struct{}

func (failingMinter) Mint(uid, phoneNumber string) (string, error) {
	return "", fmt.Errorf("signing key unavailable")
}

type fixture struct {
	otps     *mockOTPStore
	drivers  *mockDriverStore
	accounts *mockAccountStore
	gateway  *fakeGateway
	svc      *AuthService
}

func newFixture() *fixture {
	f := &fixture{
		otps:     newMockOTPStore(),
		drivers:  &mockDriverStore{byPhone: map[string]string{}},
		accounts: newMockAccountStore(),
		gateway: &fakeGateway{result: &sms.SendResult{
			Code:      "482913",
			MessageID: "m-1",
			Status:    "Pending",
			Recipient: "639171234567",
			Network:   "Globe",
		}},
	}
	tokens := NewTokenManager("test-secret", time.Hour)
	f.svc = NewAuthService(f.otps, f.drivers, f.accounts, f.gateway, tokens, 5*time.Minute)
	return f
}

const rawPhone = "09171234567"

func TestRequestOTPStoresRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, rawPhone))

	// Шлюзу уходит международная цифровая форма, ключ записи — сырая строка.
	require.Equal(t, []string{"639171234567"}, f.gateway.calls)

	record, ok := f.otps.records[rawPhone]
	require.True(t, ok, "запись должна лежать под сырым ключом")
	assert.Equal(t, "m-1", record.GatewayMessageID)
	assert.Equal(t, "Globe", record.Network)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte("482913")))
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), record.ExpiresAt, 5*time.Second)
}

func TestRequestOTPGatewayErrorLeavesNoRecord(t *testing.T) {
	f := newFixture()
	f.gateway.err = apperror.GatewayProtocol(nil, "missing code in response")

	err := f.svc.RequestOTP(context.Background(), rawPhone)
	require.Error(t, err)
	assert.True(t, apperror.IsGatewayError(err))
	assert.Equal(t, 0, f.otps.len())
}

func TestRequestOTPDeliveryFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.gateway.result.Status = "Refunded"

	err := f.svc.RequestOTP(context.Background(), rawPhone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.GatewayUnavailable(nil)))
	assert.Equal(t, 0, f.otps.len(), "компенсирующее удаление должно сработать")
}

func TestRequestOTPRejectsUnknownShape(t *testing.T) {
	f := newFixture()
	err := f.svc.RequestOTP(context.Background(), "12345")
	require.Error(t, err)
	assert.Empty(t, f.gateway.calls)
}

func TestVerifyOTPNoPending(t *testing.T) {
	f := newFixture()
	_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
	assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
}

func TestVerifyOTPExpired(t *testing.T) {
	f := newFixture()
	f.otps.putCode(t, rawPhone, "482913", time.Now().Add(-time.Minute))

	_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
	assert.ErrorIs(t, err, apperror.ErrOTPExpired)

	// Запись удалена: следующая попытка уже не различает причину.
	_, err = f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
	assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
}

func TestVerifyOTPMismatchKeepsRecord(t *testing.T) {
	f := newFixture()
	f.drivers.byPhone["09171234567"] = "D1"
	f.accounts.add(&models.Account{UID: "D1", PhoneNumber: "+639171234567"})
	f.otps.putCode(t, rawPhone, "482913", time.Now().Add(time.Minute))

	_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "000000"})
	assert.ErrorIs(t, err, apperror.ErrOTPMismatch)
	assert.Equal(t, 1, f.otps.len(), "несовпавший код не должен удалять запись")

	// Неистёкший код остаётся действительным для следующей попытки.
	res, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
	require.NoError(t, err)
	assert.Equal(t, "D1", res.UID)
}

func TestVerifyOTPSingleUse(t *testing.T) {
	f := newFixture()
	f.drivers.byPhone["09171234567"] = "D1"
	f.accounts.add(&models.Account{UID: "D1", PhoneNumber: "+639171234567"})
	f.otps.putCode(t, rawPhone, "482913", time.Now().Add(time.Minute))

	_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
	assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
}

func TestReissueInvalidatesPreviousCode(t *testing.T) {
	f := newFixture()
	f.otps.putCode(t, rawPhone, "111111", time.Now().Add(time.Minute))

	// Повторная выдача замещает запись: старый код перестаёт подходить.
	require.NoError(t, f.svc.RequestOTP(context.Background(), rawPhone))

	_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "111111", IsRegistration: true})
	assert.ErrorIs(t, err, apperror.ErrOTPMismatch)
}

// Выдача и проверка обязаны использовать байт-в-байт одинаковую строку
// номера: эквивалентное представление — это другой ключ.
func TestVerifyOTPDifferentRepresentationFails(t *testing.T) {
	f := newFixture()
	f.otps.putCode(t, "09171234567", "482913", time.Now().Add(time.Minute))

	_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{
		Phone:          "+639171234567",
		Code:           "482913",
		IsRegistration: true,
	})
	assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
}

func TestVerifyDecisionMatrix(t *testing.T) {
	cases := []struct {
		name           string
		driverID       string
		driverPhone    string
		account        *models.Account
		isRegistration bool
		wantErr        error
		wantUID        string
		wantNewUser    bool
		wantNeeds      bool
		wantDriverID   string
	}{
		{
			name:         "профиль и учётка, идентификаторы совпадают",
			driverID:     "D1",
			driverPhone:  "+639171234567",
			account:      &models.Account{UID: "D1", PhoneNumber: "+639171234567"},
			wantUID:      "D1",
			wantDriverID: "D1",
		},
		{
			name:         "профиль и учётка, идентификаторы разошлись",
			driverID:     "D1",
			driverPhone:  "639171234567",
			account:      &models.Account{UID: "A9", PhoneNumber: "+639171234567"},
			wantUID:      "A9",
			wantDriverID: "D1",
		},
		{
			name:         "профиль без учётки: uid принудительно равен id профиля",
			driverID:     "D1",
			driverPhone:  "09171234567",
			wantUID:      "D1",
			wantDriverID: "D1",
		},
		{
			name:           "учётка без профиля при регистрации",
			account:        &models.Account{UID: "A7", PhoneNumber: "+639171234567"},
			isRegistration: true,
			wantUID:        "A7",
			wantNewUser:    true,
			wantNeeds:      true,
			wantDriverID:   "A7",
		},
		{
			name:    "учётка без профиля при логине",
			account: &models.Account{UID: "A7", PhoneNumber: "+639171234567"},
			wantErr: apperror.ErrProfileNotFound,
		},
		{
			name:           "ничего нет, регистрация: свежий uid",
			isRegistration: true,
			wantNewUser:    true,
		},
		{
			name:    "ничего нет, логин",
			wantErr: apperror.ErrProfileNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			if tc.driverID != "" {
				f.drivers.byPhone[tc.driverPhone] = tc.driverID
			}
			if tc.account != nil {
				f.accounts.add(tc.account)
			}
			f.otps.putCode(t, rawPhone, "482913", time.Now().Add(time.Minute))

			res, err := f.svc.VerifyOTP(context.Background(), VerifyInput{
				Phone:          rawPhone,
				Code:           "482913",
				IsRegistration: tc.isRegistration,
			})

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, tc.wantNewUser, res.IsNewUser)
			assert.Equal(t, tc.wantNeeds, res.NeedsProfile)

			if tc.wantUID != "" {
				assert.Equal(t, tc.wantUID, res.UID)
				assert.Equal(t, tc.wantDriverID, res.DriverID)
			} else {
				// Свежий uid: непустой и под него создана учётная запись.
				require.NotEmpty(t, res.UID)
				assert.Equal(t, res.UID, res.DriverID)
				_, ok := f.accounts.byUID[res.UID]
				assert.True(t, ok)
			}
		})
	}
}

// Сценарий возвращающегося водителя: профиль "D1" есть, учётки нет —
// создаётся учётка с uid, равным id профиля.
func TestVerifyRepairsMissingAccount(t *testing.T) {
	f := newFixture()
	f.drivers.byPhone["09171234567"] = "D1"
	f.otps.putCode(t, rawPhone, "482913", time.Now().Add(time.Minute))

	res, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
	require.NoError(t, err)

	assert.Equal(t, "D1", res.UID)
	assert.False(t, res.IsNewUser)
	assert.False(t, res.NeedsProfile)
	assert.Equal(t, "D1", res.DriverID)

	created, ok := f.accounts.byUID["D1"]
	require.True(t, ok)
	assert.Equal(t, "+639171234567", created.PhoneNumber)
}

func TestVerifyTokenMintFailureLeavesAccount(t *testing.T) {
	f := newFixture()
	svc := NewAuthService(f.otps, f.drivers, f.accounts, f.gateway, failingMinter{}, 5*time.Minute)
	f.otps.putCode(t, rawPhone, "482913", time.Now().Add(time.Minute))

	_, err := svc.VerifyOTP(context.Background(), VerifyInput{
		Phone:          rawPhone,
		Code:           "482913",
		IsRegistration: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrTokenMintFailed)

	// Свежесозданная учётка намеренно не откатывается.
	assert.Len(t, f.accounts.byUID, 1)
}

// N одновременных проверок с одним верным кодом: ровно один успех,
// остальные видят отсутствие кода.
func TestVerifyConcurrentSingleSuccess(t *testing.T) {
	f := newFixture()
	f.drivers.byPhone["09171234567"] = "D1"
	f.accounts.add(&models.Account{UID: "D1", PhoneNumber: "+639171234567"})
	f.otps.putCode(t, rawPhone, "482913", time.Now().Add(time.Minute))

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Phone: rawPhone, Code: "482913"})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
	}
	assert.Equal(t, 1, successes, "ровно одно погашение на выданный код")
}
