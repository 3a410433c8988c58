package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const lookupTimeout = 2 * time.Second

const identifyQ = `
  SELECT u.username
    FROM users u
    JOIN webauthtokens w ON w.id = u.id
   WHERE w.token = $1`

// SQLProvider resolves web auth tokens against the users database.
type SQLProvider struct {
	db *sql.DB
}

var _ Provider = (*SQLProvider)(nil)

func NewSQLProvider(db *sql.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

func (p *SQLProvider) Identify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Anonymous, nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var username string
	err := p.db.QueryRowContext(ctx, identifyQ, token).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		zap.L().Debug("identity.unknown_token")
		return Anonymous, nil
	}
	if err != nil {
		return Anonymous, fmt.Errorf("identify token: %w", err)
	}
	if username = strings.TrimSpace(username); username == "" {
		return Anonymous, nil
	}
	return Identity{DisplayName: username, Authenticated: true}, nil
}
