// Package model содержит доменные сущности магазина насекомых.
package model

import "time"

// Insect представляет позицию каталога насекомых.
type Insect struct {
	ID       int64   `json:"id"`
	Species  string  `json:"species"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
}

// InsectFilter описывает необязательные условия поиска по каталогу.
type InsectFilter struct {
	MinPrice *float64
	MaxPrice *float64
	Species  *string
}

// Order описывает заказ покупателя. ItemIDs хранит идентификаторы позиций,
// развёрнутый состав собирается отдельным чтением.
type Order struct {
	ID              int64     `json:"id"`
	Phone           string    `json:"phone"`
	DeliveryAddress string    `json:"delivery_address"`
	SubmitTime      time.Time `json:"submit_time"`
	Total           float64   `json:"total"`
	ItemIDs         []int64   `json:"items"`
	UserID          int64     `json:"user_order_id"`
}

// OrderDetail — заказ с развёрнутым составом. Поле Items замещает список
// идентификаторов при сериализации.
type OrderDetail struct {
	Order
	Items []Insect `json:"items"`
}

// OrderFilter описывает необязательные условия поиска по заказам.
type OrderFilter struct {
	MinTotal *float64
	MaxTotal *float64
	UserID   *int64
}

// User представляет зарегистрированного пользователя. Хеш пароля не имеет
// json-тега и не должен попадать в ответы API: наружу уходит только Public.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	IsAdmin      bool
}

// PublicUser — безопасная проекция пользователя без хеша пароля.
type PublicUser struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	IsAdmin  bool    `json:"is_admin"`
	OrderIDs []int64 `json:"orders,omitempty"`
}

// Public возвращает безопасную проекцию пользователя.
func (u *User) Public() PublicUser {
	return PublicUser{
		Username: u.Username,
		Email:    u.Email,
		IsAdmin:  u.IsAdmin,
	}
}
