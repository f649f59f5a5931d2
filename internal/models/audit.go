package models

import "time"

// Действия, фиксируемые в журнале аутентификации.
const (
	AuditActionRequestOTP = "request_otp"
	AuditActionVerifyOTP  = "verify_otp"
)

// AuditEntry — запись журнала событий OTP: кто запрашивал и проверял коды
// и с каким исходом. Пишется асинхронно, best effort.
type AuditEntry struct {
	ID        int64     `db:"id" json:"id"`
	Phone     string    `db:"phone" json:"phone"`
	Action    string    `db:"action" json:"action"`
	Outcome   string    `db:"outcome" json:"outcome"`
	Detail    string    `db:"detail" json:"detail"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
