// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/OspreyFly/fuzzy-phids-backend/internal/model"
	"github.com/OspreyFly/fuzzy-phids-backend/internal/sqlbuild"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound возвращается, если запись с указанным идентификатором отсутствует.
var (
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate возвращается при нарушении уникальности записи.
	ErrDuplicate = errors.New("entity already exists")
	// ErrInvalidArgument возвращается при некорректных входных данных операции.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidCredentials возвращается при неуспешной проверке логина и пароля.
	// Ошибка одинакова для неизвестного пользователя и неверного пароля.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Списки разрешённых для частичного обновления полей. Статичные таблицы
// соответствия "поле запроса -> колонка" закрывают подстановку произвольных
// имён колонок.
var (
	insectUpdateColumns = map[string]string{
		"price":     "price_cents",
		"image_url": "image_url",
	}
	userUpdateColumns = map[string]string{
		"username": "username",
		"password": "password_hash",
		"is_admin": "is_admin",
	}
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
// Пул соединений создаётся один раз при конструировании и передаётся дальше
// явно, без глобального состояния.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД
// через миграции. Первичная проверка соединения повторяется с нарастающей
// задержкой: на старте БД может подниматься параллельно с сервисом.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Цены хранятся в копейках, на границе API используются рубли с копейками.
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// CreateInsect добавляет позицию каталога. Уникальность вида обеспечивает
// ограничение в БД, поэтому вставка атомарна.
func (r *PostgresRepository) CreateInsect(ctx context.Context, ins model.Insect) (*model.Insect, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO insects (species, price_cents, image_url) VALUES ($1, $2, $3) RETURNING id`,
		ins.Species, toCents(ins.Price), ins.ImageURL,
	).Scan(&ins.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: species %q", ErrDuplicate, ins.Species)
		}
		return nil, fmt.Errorf("create insect: %w", err)
	}
	return &ins, nil
}

// ListInsects возвращает позиции каталога, удовлетворяющие фильтру,
// в алфавитном порядке видов. Пустой результат не является ошибкой.
func (r *PostgresRepository) ListInsects(ctx context.Context, f model.InsectFilter) ([]model.Insect, error) {
	query := `SELECT id, species, price_cents, image_url FROM insects`

	var conds []string
	var args []any
	if f.MinPrice != nil {
		args = append(args, toCents(*f.MinPrice))
		conds = append(conds, fmt.Sprintf("price_cents >= $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, toCents(*f.MaxPrice))
		conds = append(conds, fmt.Sprintf("price_cents <= $%d", len(args)))
	}
	if f.Species != nil {
		args = append(args, *f.Species)
		conds = append(conds, fmt.Sprintf("species ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY species"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select insects: %w", err)
	}
	defer rows.Close()

	insects := make([]model.Insect, 0)
	for rows.Next() {
		var ins model.Insect
		var cents int64
		if err := rows.Scan(&ins.ID, &ins.Species, &cents, &ins.ImageURL); err != nil {
			return nil, fmt.Errorf("scan insect: %w", err)
		}
		ins.Price = fromCents(cents)
		insects = append(insects, ins)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return insects, nil
}

// GetInsect возвращает позицию каталога по идентификатору.
func (r *PostgresRepository) GetInsect(ctx context.Context, id int64) (*model.Insect, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, species, price_cents, image_url FROM insects WHERE id = $1`,
		id,
	)

	var ins model.Insect
	var cents int64
	if err := row.Scan(&ins.ID, &ins.Species, &cents, &ins.ImageURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: insect %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get insect: %w", err)
	}
	ins.Price = fromCents(cents)

	return &ins, nil
}

// UpdateInsect применяет частичное обновление по списку разрешённых полей
// и возвращает запись целиком после обновления. Один оператор UPDATE:
// при ошибке строка остаётся нетронутой.
func (r *PostgresRepository) UpdateInsect(ctx context.Context, id int64, data map[string]any) (*model.Insect, error) {
	if v, ok := data["price"].(float64); ok {
		data["price"] = toCents(v)
	}

	assignments, values, err := sqlbuild.BuildPartialUpdate(data, insectUpdateColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	query := fmt.Sprintf(
		`UPDATE insects SET %s WHERE id = $%d RETURNING id, species, price_cents, image_url`,
		strings.Join(assignments, ", "), len(values)+1,
	)
	values = append(values, id)

	var ins model.Insect
	var cents int64
	if err := r.pool.QueryRow(ctx, query, values...).Scan(&ins.ID, &ins.Species, &cents, &ins.ImageURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: insect %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("update insect: %w", err)
	}
	ins.Price = fromCents(cents)

	return &ins, nil
}

// DeleteInsect удаляет позицию каталога по идентификатору.
func (r *PostgresRepository) DeleteInsect(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM insects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete insect: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: insect %d", ErrNotFound, id)
	}
	return nil
}

// CreateOrder сохраняет заказ. Повторная отправка с той же парой
// (пользователь, время оформления) отклоняется ограничением уникальности.
// Если время оформления не задано, его выставляет БД.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) (*model.Order, error) {
	var err error
	if o.SubmitTime.IsZero() {
		err = r.pool.QueryRow(ctx,
			`INSERT INTO orders (phone, delivery_address, total_cents, items, user_order_id)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id, submit_time`,
			o.Phone, o.DeliveryAddress, toCents(o.Total), o.ItemIDs, o.UserID,
		).Scan(&o.ID, &o.SubmitTime)
	} else {
		err = r.pool.QueryRow(ctx,
			`INSERT INTO orders (phone, delivery_address, submit_time, total_cents, items, user_order_id)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			o.Phone, o.DeliveryAddress, o.SubmitTime, toCents(o.Total), o.ItemIDs, o.UserID,
		).Scan(&o.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: order for user %d at %s", ErrDuplicate, o.UserID, o.SubmitTime)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &o, nil
}

// ListOrders возвращает заказы, удовлетворяющие фильтру, в порядке
// оформления.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	query := `SELECT id, phone, delivery_address, submit_time, total_cents, items, user_order_id FROM orders`

	var conds []string
	var args []any
	if f.MinTotal != nil {
		args = append(args, toCents(*f.MinTotal))
		conds = append(conds, fmt.Sprintf("total_cents >= $%d", len(args)))
	}
	if f.MaxTotal != nil {
		args = append(args, toCents(*f.MaxTotal))
		conds = append(conds, fmt.Sprintf("total_cents <= $%d", len(args)))
	}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		conds = append(conds, fmt.Sprintf("user_order_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY submit_time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var cents int64
	if err := row.Scan(&o.ID, &o.Phone, &o.DeliveryAddress, &o.SubmitTime, &cents, &o.ItemIDs, &o.UserID); err != nil {
		return nil, err
	}
	o.Total = fromCents(cents)
	return &o, nil
}

// GetOrder возвращает заказ с развёрнутым составом: позиции каталога
// перечитываются на момент запроса и подставляются вместо списка
// идентификаторов. Порядок и повторы позиций сохраняются; удалённые из
// каталога позиции пропускаются.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.OrderDetail, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, phone, delivery_address, submit_time, total_cents, items, user_order_id
		 FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	detail := &model.OrderDetail{
		Order: *o,
		Items: make([]model.Insect, 0, len(o.ItemIDs)),
	}
	if len(o.ItemIDs) == 0 {
		return detail, nil
	}

	byID, err := r.insectsByIDs(ctx, o.ItemIDs)
	if err != nil {
		return nil, err
	}
	for _, itemID := range o.ItemIDs {
		if ins, ok := byID[itemID]; ok {
			detail.Items = append(detail.Items, ins)
		}
	}

	return detail, nil
}

func (r *PostgresRepository) insectsByIDs(ctx context.Context, ids []int64) (map[int64]model.Insect, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, species, price_cents, image_url FROM insects WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]model.Insect)
	for rows.Next() {
		var ins model.Insect
		var cents int64
		if err := rows.Scan(&ins.ID, &ins.Species, &cents, &ins.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		ins.Price = fromCents(cents)
		byID[ins.ID] = ins
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return byID, nil
}

// DeleteOrder удаляет заказ по идентификатору.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return nil
}

// OrderItemPriceCents возвращает актуальные цены позиций заказа в копейках,
// с сохранением порядка и повторов. Используется при расчёте итоговой
// стоимости.
func (r *PostgresRepository) OrderItemPriceCents(ctx context.Context, orderID int64) ([]int64, error) {
	var itemIDs []int64
	err := r.pool.QueryRow(ctx, `SELECT items FROM orders WHERE id = $1`, orderID).Scan(&itemIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("get order items: %w", err)
	}
	if len(itemIDs) == 0 {
		return nil, nil
	}

	byID, err := r.insectsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	prices := make([]int64, 0, len(itemIDs))
	for _, id := range itemIDs {
		if ins, ok := byID[id]; ok {
			prices = append(prices, toCents(ins.Price))
		}
	}

	return prices, nil
}

// CreateUser создаёт нового пользователя. Уникальность имени обеспечивает
// ограничение в БД.
func (r *PostgresRepository) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, email, is_admin) VALUES ($1, $2, $3, $4) RETURNING id`,
		u.Username, u.PasswordHash, u.Email, u.IsAdmin,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q", ErrDuplicate, u.Username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername возвращает пользователя по имени. Строка содержит хеш
// пароля: наружу её отдаёт только сервис через безопасную проекцию.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, email, is_admin FROM users WHERE username = $1`,
		username,
	)

	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.IsAdmin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// ListUsers возвращает всех пользователей в алфавитном порядке имён.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, password_hash, email, is_admin FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// UserOrderIDs возвращает идентификаторы заказов пользователя в порядке
// оформления. Список заказов не хранится в записи пользователя, а
// выводится из заказов при чтении.
func (r *PostgresRepository) UserOrderIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM orders WHERE user_order_id = $1 ORDER BY submit_time`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select user orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// UpdateUser применяет частичное обновление по списку разрешённых полей.
// Поле password должно приходить уже захешированным.
func (r *PostgresRepository) UpdateUser(ctx context.Context, username string, data map[string]any) (*model.User, error) {
	assignments, values, err := sqlbuild.BuildPartialUpdate(data, userUpdateColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE username = $%d RETURNING id, username, password_hash, email, is_admin`,
		strings.Join(assignments, ", "), len(values)+1,
	)
	values = append(values, username)

	var u model.User
	if err := r.pool.QueryRow(ctx, query, values...).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.IsAdmin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username taken", ErrDuplicate)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return &u, nil
}

// DeleteUser удаляет пользователя по имени.
func (r *PostgresRepository) DeleteUser(ctx context.Context, username string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return nil
}
