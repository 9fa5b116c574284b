package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/sirupsen/logrus"
)

type SocialAccountRepository interface {
	// GetByOwnerAndPlatform returns the active account an owner connected for a
	// platform, or nil, nil when none exists.
	GetByOwnerAndPlatform(ctx context.Context, ownerID, platform string) (*models.SocialAccount, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.SocialAccount, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, owner_id, platform, account_id, account_name, access_token, refresh_token,
	token_expires_at, account_status, created_at, updated_at`

func scanSocialAccount(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.OwnerID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt, &sa.AccountStatus,
		&sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *socialAccountRepository) GetByOwnerAndPlatform(ctx context.Context, ownerID, platform string) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE owner_id = $1 AND platform = $2 AND account_status = 'active'
		ORDER BY updated_at DESC
		LIMIT 1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, ownerID, platform))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logrus.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE owner_id = $1`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			logrus.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	if err := rows.Err(); err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}
