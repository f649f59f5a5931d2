package models

import "time"

// OTP хранит выданный одноразовый код для конкретного номера телефона.
// Ключ — номер телефона ровно в том виде, в котором его прислал клиент:
// выдача и проверка кода должны использовать байт-в-байт одинаковую строку.
// CodeHash — bcrypt-хеш кода, сам код в базе не хранится.
type OTP struct {
	Phone            string    `db:"phone" json:"phone"`
	CodeHash         string    `db:"code_hash" json:"-"`
	GatewayMessageID string    `db:"gateway_message_id" json:"gateway_message_id"`
	GatewayStatus    string    `db:"gateway_status" json:"gateway_status"`
	Recipient        string    `db:"recipient" json:"recipient"`
	Network          string    `db:"network" json:"network"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
}

// Expired сообщает, истёк ли срок действия кода на момент now.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
