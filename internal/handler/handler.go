// Package handler содержит HTTP-обработчики API магазина насекомых.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/OspreyFly/fuzzy-phids-backend/internal/model"
	"github.com/OspreyFly/fuzzy-phids-backend/internal/repository"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateInsect(ctx context.Context, ins model.Insect) (*model.Insect, error)
	ListInsects(ctx context.Context, f model.InsectFilter) ([]model.Insect, error)
	GetInsect(ctx context.Context, id int64) (*model.Insect, error)
	UpdateInsect(ctx context.Context, id int64, data map[string]any) (*model.Insect, error)
	DeleteInsect(ctx context.Context, id int64) error
	CreateOrder(ctx context.Context, o model.Order) (*model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.OrderDetail, error)
	DeleteOrder(ctx context.Context, id int64) error
	OrderTotal(ctx context.Context, orderID int64) (int64, error)
	Register(ctx context.Context, username, password, email string, isAdmin bool) (*model.PublicUser, error)
	Authenticate(ctx context.Context, username, password string) (*model.PublicUser, error)
	ListUsers(ctx context.Context) ([]model.PublicUser, error)
	GetUser(ctx context.Context, username string) (*model.PublicUser, error)
	UpdateUser(ctx context.Context, username string, data map[string]any) (*model.PublicUser, error)
	DeleteUser(ctx context.Context, username string) error
}

// Handler реализует HTTP-обработчики API магазина насекомых.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// writeError переводит ошибки доменного слоя в HTTP-статусы. Непредвиденные
// ошибки логируются и отдаются как 500 без деталей.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, repository.ErrInvalidArgument), errors.Is(err, repository.ErrDuplicate):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func floatQuery(r *http.Request, name string) (*float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

type createInsectRequest struct {
	Species  string  `json:"species"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
}

// CreateInsect добавляет позицию каталога.
func (h *Handler) CreateInsect(w http.ResponseWriter, r *http.Request) {
	var req createInsectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ins, err := h.service.CreateInsect(r.Context(), model.Insect{
		Species:  req.Species,
		Price:    req.Price,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		h.writeError(w, err, "create insect error", zap.String("species", req.Species))
		return
	}

	h.writeJSON(w, http.StatusCreated, ins)
}

// ListInsects возвращает позиции каталога с учётом фильтров запроса.
func (h *Handler) ListInsects(w http.ResponseWriter, r *http.Request) {
	var f model.InsectFilter
	var ok bool
	if f.MinPrice, ok = floatQuery(r, "min_price"); !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if f.MaxPrice, ok = floatQuery(r, "max_price"); !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if s := r.URL.Query().Get("species"); s != "" {
		f.Species = &s
	}

	insects, err := h.service.ListInsects(r.Context(), f)
	if err != nil {
		h.writeError(w, err, "list insects error")
		return
	}

	h.writeJSON(w, http.StatusOK, insects)
}

// GetInsect возвращает позицию каталога по идентификатору.
func (h *Handler) GetInsect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ins, err := h.service.GetInsect(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get insect error", zap.Int64("id", id))
		return
	}

	h.writeJSON(w, http.StatusOK, ins)
}

type updateInsectRequest struct {
	Price    *float64 `json:"price"`
	ImageURL *string  `json:"image_url"`
}

// UpdateInsect применяет частичное обновление позиции каталога. Пустой
// запрос отклоняется до обращения к сервису.
func (h *Handler) UpdateInsect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateInsectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	data := make(map[string]any)
	if req.Price != nil {
		data["price"] = *req.Price
	}
	if req.ImageURL != nil {
		data["image_url"] = *req.ImageURL
	}
	if len(data) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ins, err := h.service.UpdateInsect(r.Context(), id, data)
	if err != nil {
		h.writeError(w, err, "update insect error", zap.Int64("id", id))
		return
	}

	h.writeJSON(w, http.StatusOK, ins)
}

// DeleteInsect удаляет позицию каталога.
func (h *Handler) DeleteInsect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteInsect(r.Context(), id); err != nil {
		h.writeError(w, err, "delete insect error", zap.Int64("id", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createOrderRequest struct {
	Phone           string     `json:"phone"`
	DeliveryAddress string     `json:"delivery_address"`
	SubmitTime      *time.Time `json:"submit_time"`
	Total           float64    `json:"total"`
	Items           []int64    `json:"items"`
	UserID          int64      `json:"user_order_id"`
}

// CreateOrder сохраняет заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o := model.Order{
		Phone:           req.Phone,
		DeliveryAddress: req.DeliveryAddress,
		Total:           req.Total,
		ItemIDs:         req.Items,
		UserID:          req.UserID,
	}
	if req.SubmitTime != nil {
		o.SubmitTime = *req.SubmitTime
	}

	created, err := h.service.CreateOrder(r.Context(), o)
	if err != nil {
		h.writeError(w, err, "create order error", zap.Int64("userID", req.UserID))
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// ListOrders возвращает заказы с учётом фильтров запроса.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var f model.OrderFilter
	var ok bool
	if f.MinTotal, ok = floatQuery(r, "min_total"); !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if f.MaxTotal, ok = floatQuery(r, "max_total"); !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if raw := r.URL.Query().Get("user_order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		f.UserID = &id
	}

	orders, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		h.writeError(w, err, "list orders error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ с развёрнутым составом.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get order error", zap.Int64("id", id))
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type totalResponse struct {
	Total int64 `json:"total"`
}

// GetOrderTotal возвращает расчётную стоимость заказа с налогом.
func (h *Handler) GetOrderTotal(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	total, err := h.service.OrderTotal(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "order total error", zap.Int64("id", id))
		return
	}

	h.writeJSON(w, http.StatusOK, totalResponse{Total: total})
}

// DeleteOrder удаляет заказ.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.writeError(w, err, "delete order error", zap.Int64("id", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password, req.Email, req.IsAdmin)
	if err != nil {
		h.writeError(w, err, "register user error", zap.String("username", req.Username))
		return
	}

	h.writeJSON(w, http.StatusCreated, user)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login выполняет проверку учётных данных пользователя.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err, "login error", zap.String("username", req.Username))
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// ListUsers возвращает всех пользователей без хешей паролей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err, "list users error")
		return
	}

	h.writeJSON(w, http.StatusOK, users)
}

// GetUser возвращает пользователя по имени вместе с его заказами.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.GetUser(r.Context(), username)
	if err != nil {
		h.writeError(w, err, "get user error", zap.String("username", username))
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"is_admin"`
}

// UpdateUser применяет частичное обновление пользователя.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	data := make(map[string]any)
	if req.Username != nil {
		data["username"] = *req.Username
	}
	if req.Password != nil {
		data["password"] = *req.Password
	}
	if req.IsAdmin != nil {
		data["is_admin"] = *req.IsAdmin
	}
	if len(data) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), username, data)
	if err != nil {
		h.writeError(w, err, "update user error", zap.String("username", username))
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// DeleteUser удаляет пользователя по имени.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.service.DeleteUser(r.Context(), username); err != nil {
		h.writeError(w, err, "delete user error", zap.String("username", username))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
