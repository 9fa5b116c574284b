package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/maheshrc27/publisher/configs"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
	"github.com/maheshrc27/publisher/pkg/utils"
)

// AccountCredentials reads the tokens owners connected through the accounts
// subsystem. Tokens are stored sealed when a sealer is configured.
type AccountCredentials struct {
	accounts repository.SocialAccountRepository
	sealer   *utils.Sealer
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewAccountCredentials(accounts repository.SocialAccountRepository, sealer *utils.Sealer, log logrus.FieldLogger) *AccountCredentials {
	return &AccountCredentials{
		accounts: accounts,
		sealer:   sealer,
		log:      log,
		now:      time.Now,
	}
}

func (c *AccountCredentials) Credentials(ctx context.Context, ownerID, name string) (*platform.Credentials, error) {
	sa, err := c.accounts.GetByOwnerAndPlatform(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if sa == nil {
		return nil, nil
	}
	if !sa.TokenExpiresAt.IsZero() && sa.TokenExpiresAt.Before(c.now()) {
		c.log.WithFields(logrus.Fields{"owner_id": ownerID, "platform": name}).Warn("stored token expired")
		return nil, nil
	}

	token := sa.AccessToken
	if c.sealer != nil {
		token, err = c.sealer.Open(sa.AccessToken)
		if err != nil {
			c.log.WithFields(logrus.Fields{"owner_id": ownerID, "platform": name}).WithError(err).Error("stored token unreadable")
			return nil, err
		}
	}
	return &platform.Credentials{AccountID: sa.AccountID, AccessToken: token}, nil
}

// StaticCredentials serves the same configured account to every owner.
type StaticCredentials struct {
	accounts map[string]config.PlatformAccount
}

func NewStaticCredentials(accounts map[string]config.PlatformAccount) *StaticCredentials {
	return &StaticCredentials{accounts: accounts}
}

func (c *StaticCredentials) Credentials(_ context.Context, _, name string) (*platform.Credentials, error) {
	acc, ok := c.accounts[name]
	if !ok || acc.AccessToken == "" {
		return nil, nil
	}
	return &platform.Credentials{AccountID: acc.AccountID, AccessToken: acc.AccessToken}, nil
}

// ChainCredentials asks each provider in order and returns the first hit.
type ChainCredentials []platform.CredentialsProvider

func (c ChainCredentials) Credentials(ctx context.Context, ownerID, name string) (*platform.Credentials, error) {
	for _, p := range c {
		creds, err := p.Credentials(ctx, ownerID, name)
		if err != nil {
			return nil, err
		}
		if creds != nil {
			return creds, nil
		}
	}
	return nil, nil
}
