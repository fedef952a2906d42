package model

import (
	"time"

	"github.com/google/uuid"
)

// User представляет пользователя приложения.
// Аутентификации нет: идентификатор передается клиентом как есть.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserName  string    `db:"user_name" json:"user_name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Genre - элемент справочника жанров.
type Genre struct {
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Mood - элемент справочника настроений.
type Mood struct {
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}
