package validation

import (
	"fmt"
	"strings"

	"github.com/tricykol/auth-backend/internal/phone"
)

const (
	MinPhoneLength = 10
	MaxPhoneLength = 13
	OTPCodeLength  = 6
)

// ValidatePhone проверяет, что строка похожа на принимаемый номер телефона.
// Канонизация здесь не выполняется: хранилище OTP ключуется исходной
// строкой, поэтому проверяем только форму.
func ValidatePhone(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("phone is required")
	}
	if len(s) < MinPhoneLength || len(s) > MaxPhoneLength {
		return fmt.Errorf("phone must be between %d and %d characters", MinPhoneLength, MaxPhoneLength)
	}
	if _, ok := phone.NationalNumber(s); !ok {
		return fmt.Errorf("phone format is not recognized")
	}
	return nil
}

// ValidateOTPCode проверяет формат одноразового кода.
func ValidateOTPCode(code string) error {
	if code == "" {
		return fmt.Errorf("otp is required")
	}
	if len(code) != OTPCodeLength {
		return fmt.Errorf("otp must be %d digits", OTPCodeLength)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("otp must contain only digits")
		}
	}
	return nil
}
