package models

import "time"

// Driver — профиль водителя. Подсистема аутентификации профили не создаёт и
// не изменяет, ей важно только существование записи и её id. Номер телефона
// в таблице может лежать в любом из четырёх текстовых представлений.
type Driver struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	IsVerified  bool      `db:"is_verified" json:"is_verified"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
