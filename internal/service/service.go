// Package service реализует бизнес-логику магазина насекомых.
package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/OspreyFly/fuzzy-phids-backend/internal/model"
	"github.com/OspreyFly/fuzzy-phids-backend/internal/pricing"
	"github.com/OspreyFly/fuzzy-phids-backend/internal/repository"
	"github.com/OspreyFly/fuzzy-phids-backend/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateInsect(ctx context.Context, ins model.Insect) (*model.Insect, error)
	ListInsects(ctx context.Context, f model.InsectFilter) ([]model.Insect, error)
	GetInsect(ctx context.Context, id int64) (*model.Insect, error)
	UpdateInsect(ctx context.Context, id int64, data map[string]any) (*model.Insect, error)
	DeleteInsect(ctx context.Context, id int64) error
	CreateOrder(ctx context.Context, o model.Order) (*model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.OrderDetail, error)
	DeleteOrder(ctx context.Context, id int64) error
	OrderItemPriceCents(ctx context.Context, orderID int64) ([]int64, error)
	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UserOrderIDs(ctx context.Context, userID int64) ([]int64, error)
	UpdateUser(ctx context.Context, username string, data map[string]any) (*model.User, error)
	DeleteUser(ctx context.Context, username string) error
}

// Service содержит бизнес-логику магазина насекомых.
type Service struct {
	repo       Repository
	bcryptCost int
}

// NewService создаёт сервис с указанным репозиторием и стоимостью
// хеширования паролей. Нулевая стоимость заменяется значением по умолчанию.
func NewService(repo Repository, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CreateInsect добавляет позицию каталога после проверки обязательных полей.
func (s *Service) CreateInsect(ctx context.Context, ins model.Insect) (*model.Insect, error) {
	if ins.Species == "" {
		return nil, fmt.Errorf("%w: species must not be empty", repository.ErrInvalidArgument)
	}
	if ins.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", repository.ErrInvalidArgument)
	}
	return s.repo.CreateInsect(ctx, ins)
}

// ListInsects возвращает позиции каталога по фильтру. Перевёрнутый диапазон
// цен отклоняется до обращения к хранилищу.
func (s *Service) ListInsects(ctx context.Context, f model.InsectFilter) ([]model.Insect, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, fmt.Errorf("%w: min price exceeds max price", repository.ErrInvalidArgument)
	}
	return s.repo.ListInsects(ctx, f)
}

// GetInsect возвращает позицию каталога по идентификатору.
func (s *Service) GetInsect(ctx context.Context, id int64) (*model.Insect, error) {
	return s.repo.GetInsect(ctx, id)
}

// UpdateInsect применяет частичное обновление позиции каталога.
func (s *Service) UpdateInsect(ctx context.Context, id int64, data map[string]any) (*model.Insect, error) {
	if v, ok := data["price"].(float64); ok && v < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", repository.ErrInvalidArgument)
	}
	return s.repo.UpdateInsect(ctx, id, data)
}

// DeleteInsect удаляет позицию каталога.
func (s *Service) DeleteInsect(ctx context.Context, id int64) error {
	return s.repo.DeleteInsect(ctx, id)
}

// CreateOrder сохраняет заказ после проверки обязательных полей.
func (s *Service) CreateOrder(ctx context.Context, o model.Order) (*model.Order, error) {
	if !validation.IsValidPhone(o.Phone) {
		return nil, fmt.Errorf("%w: malformed phone number", repository.ErrInvalidArgument)
	}
	if o.DeliveryAddress == "" {
		return nil, fmt.Errorf("%w: delivery address must not be empty", repository.ErrInvalidArgument)
	}
	if o.UserID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", repository.ErrInvalidArgument)
	}
	if o.Total < 0 {
		return nil, fmt.Errorf("%w: total must not be negative", repository.ErrInvalidArgument)
	}
	return s.repo.CreateOrder(ctx, o)
}

// ListOrders возвращает заказы по фильтру.
func (s *Service) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	if f.MinTotal != nil && f.MaxTotal != nil && *f.MinTotal > *f.MaxTotal {
		return nil, fmt.Errorf("%w: min total exceeds max total", repository.ErrInvalidArgument)
	}
	return s.repo.ListOrders(ctx, f)
}

// GetOrder возвращает заказ с развёрнутым составом.
func (s *Service) GetOrder(ctx context.Context, id int64) (*model.OrderDetail, error) {
	return s.repo.GetOrder(ctx, id)
}

// DeleteOrder удаляет заказ.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	return s.repo.DeleteOrder(ctx, id)
}

// OrderTotal выводит итоговую стоимость заказа с налогом в целых денежных
// единицах. Результат не записывается обратно в заказ: решение об этом
// остаётся за вызывающей стороной.
func (s *Service) OrderTotal(ctx context.Context, orderID int64) (int64, error) {
	prices, err := s.repo.OrderItemPriceCents(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return pricing.OrderTotal(prices), nil
}

// Register создаёт пользователя с захешированным паролем и возвращает его
// безопасную проекцию.
func (s *Service) Register(ctx context.Context, username, password, email string, isAdmin bool) (*model.PublicUser, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password must not be empty", repository.ErrInvalidArgument)
	}
	if !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: malformed email", repository.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, model.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		IsAdmin:      isAdmin,
	})
	if err != nil {
		return nil, err
	}

	pub := u.Public()
	return &pub, nil
}

// Authenticate проверяет логин и пароль и возвращает безопасную проекцию
// пользователя. Неизвестное имя и неверный пароль дают одну и ту же ошибку.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.PublicUser, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, repository.ErrInvalidCredentials
	}

	pub := u.Public()
	return &pub, nil
}

// ListUsers возвращает безопасные проекции всех пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]model.PublicUser, 0, len(users))
	for i := range users {
		res = append(res, users[i].Public())
	}
	return res, nil
}

// GetUser возвращает безопасную проекцию пользователя вместе со списком
// идентификаторов его заказов.
func (s *Service) GetUser(ctx context.Context, username string) (*model.PublicUser, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	orderIDs, err := s.repo.UserOrderIDs(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	pub := u.Public()
	pub.OrderIDs = orderIDs
	return &pub, nil
}

// UpdateUser применяет частичное обновление пользователя. Пароль, если он
// присутствует, хешируется до передачи в хранилище; хеш безусловно
// отсутствует в возвращаемой проекции.
func (s *Service) UpdateUser(ctx context.Context, username string, data map[string]any) (*model.PublicUser, error) {
	if v, ok := data["username"].(string); ok && v == "" {
		return nil, fmt.Errorf("%w: username must not be empty", repository.ErrInvalidArgument)
	}
	if v, ok := data["password"].(string); ok {
		if v == "" {
			return nil, fmt.Errorf("%w: password must not be empty", repository.ErrInvalidArgument)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(v), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		data["password"] = string(hash)
	}

	u, err := s.repo.UpdateUser(ctx, username, data)
	if err != nil {
		return nil, err
	}

	pub := u.Public()
	return &pub, nil
}

// DeleteUser удаляет пользователя по имени.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	return s.repo.DeleteUser(ctx, username)
}
