package models

import "time"

// Account — учётная запись в справочнике идентичностей, привязанная к номеру
// телефона. UID непрозрачный; для водителей он должен совпадать с id профиля
// водителя, но это соответствие не форсируется задним числом.
type Account struct {
	UID          string     `db:"uid" json:"uid"`
	PhoneNumber  string     `db:"phone_number" json:"phone_number"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastSignInAt *time.Time `db:"last_sign_in_at" json:"last_sign_in_at,omitempty"`
}
