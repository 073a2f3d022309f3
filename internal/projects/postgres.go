package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresAuthenticator struct {
	pool *pgxpool.Pool
}

func NewPostgresAuthenticator(ctx context.Context, connString string) (*PostgresAuthenticator, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresAuthenticator{pool: pool}, nil
}

// NewPostgresAuthenticatorFromPool wraps an existing pool, used by tests.
func NewPostgresAuthenticatorFromPool(pool *pgxpool.Pool) *PostgresAuthenticator {
	return &PostgresAuthenticator{pool: pool}
}

func (a *PostgresAuthenticator) Close() {
	a.pool.Close()
}

// Authenticate looks up the project by id and DSN key. Keys for projects
// that stopped accepting events resolve to ErrInvalidKey so SDKs back off.
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, projectID int64, key string) (*ProjectAuth, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT p.id, p.organization_id, p.scrub_ip_addresses, o.scrub_ip_addresses,
		       p.event_throttle_rate, o.event_throttle_rate
		FROM projects p
		JOIN organizations o ON o.id = p.organization_id
		WHERE p.id = $1 AND p.dsn_key = $2 AND p.is_accepting_events AND o.is_accepting_events
	`

	var auth ProjectAuth
	err := a.pool.QueryRow(ctx, query, projectID, key).Scan(
		&auth.ProjectID, &auth.OrganizationID,
		&auth.ScrubIPAddresses, &auth.OrgScrubIPAddresses,
		&auth.EventThrottleRate, &auth.OrgEventThrottleRate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &auth, nil
}
