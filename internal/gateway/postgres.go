package gateway

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// AccountLookup описывает контракт поставщика учётных записей,
// используемый для разрешения e-mail по внутренней ссылке пользователя.
type AccountLookup interface {
	AccountEmail(ctx context.Context, userRef string) (string, error)
}

// PostgresGateway реализует контракт шлюза поверх PostgreSQL.
// Уведомления об изменениях доставляются через LISTEN/NOTIFY.
type PostgresGateway struct {
	pool     *pgxpool.Pool
	accounts AccountLookup
	logger   *zap.Logger

	subs *subscriberRegistry
}

// NewPostgresGateway создаёт шлюз и инициализирует схему БД через миграции.
func NewPostgresGateway(dsn string, accounts AccountLookup, logger *zap.Logger) (*PostgresGateway, error) {
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

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	g := &PostgresGateway{
		pool:     pool,
		accounts: accounts,
		logger:   logger,
		subs:     newSubscriberRegistry(),
	}

	if err := g.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return g, nil
}

func (g *PostgresGateway) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(g.pool)
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
func (g *PostgresGateway) Close() error {
	g.pool.Close()
	return nil
}

// Query читает строки отношения с фильтром, соединениями и сортировкой.
func (g *PostgresGateway) Query(ctx context.Context, relation string, filter Filter, opts *QueryOptions) ([]Row, error) {
	query, args, err := buildSelect(relation, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", relation, err)
	}

	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
		m, err := pgx.RowToMap(row)
		if err != nil {
			return nil, err
		}
		return Row(m), nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect rows of %s: %w", relation, err)
	}

	return res, nil
}

// Insert добавляет строку в отношение и возвращает созданную запись.
func (g *PostgresGateway) Insert(ctx context.Context, relation string, row Row) (Row, error) {
	query, args, err := buildInsert(relation, row)
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyWriteError(relation, err)
	}

	created, err := pgx.CollectOneRow(rows, func(r pgx.CollectableRow) (Row, error) {
		m, err := pgx.RowToMap(r)
		if err != nil {
			return nil, err
		}
		return Row(m), nil
	})
	if err != nil {
		return nil, classifyWriteError(relation, err)
	}

	return created, nil
}

// Update применяет частичное обновление к строкам, отобранным фильтром.
// Если ни одна строка не подошла под фильтр (в том числе фильтр владения),
// запись считается отклонённой.
func (g *PostgresGateway) Update(ctx context.Context, relation string, patch Row, filter Filter) error {
	query, args, err := buildUpdate(relation, patch, filter)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	cmdTag, err := g.pool.Exec(ctx, query, args...)
	if err != nil {
		return classifyWriteError(relation, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no matching rows in %s", ErrWriteRejected, relation)
	}

	return nil
}

// LookupIdentityRecord разрешает запись поставщика учётных записей
// по внутренней ссылке пользователя.
func (g *PostgresGateway) LookupIdentityRecord(ctx context.Context, userRef string) (*IdentityRecord, error) {
	if g.accounts == nil {
		return nil, fmt.Errorf("identity directory not configured")
	}

	email, err := g.accounts.AccountEmail(ctx, userRef)
	if err != nil {
		return nil, fmt.Errorf("lookup identity record: %w", err)
	}

	return &IdentityRecord{UserRef: userRef, Email: email}, nil
}

// classifyWriteError переводит ошибки PostgreSQL в таксономию шлюза:
// нарушения ограничений и нехватка прав означают отклонённую запись.
func classifyWriteError(relation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: no matching rows in %s", ErrWriteRejected, relation)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) ||
			pgErr.Code == pgerrcode.InsufficientPrivilege {
			return fmt.Errorf("%w: %s", ErrWriteRejected, pgErr.Message)
		}
	}

	return fmt.Errorf("write %s: %w", relation, err)
}
