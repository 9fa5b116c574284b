package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/repository"
	"github.com/maheshrc27/publisher/internal/transfer"
)

type AccountService interface {
	Platforms(ctx context.Context, ownerID string) ([]transfer.PlatformInfo, error)
}

type accountService struct {
	registry *platform.Registry
	creds    platform.CredentialsProvider
	sa       repository.SocialAccountRepository
	log      logrus.FieldLogger
}

// NewAccountService lists the registered platforms for an owner. sa may be
// nil when no accounts table is configured.
func NewAccountService(
	registry *platform.Registry,
	creds platform.CredentialsProvider,
	sa repository.SocialAccountRepository,
	log logrus.FieldLogger) AccountService {
	return &accountService{
		registry: registry,
		creds:    creds,
		sa:       sa,
		log:      log,
	}
}

func (s *accountService) Platforms(ctx context.Context, ownerID string) ([]transfer.PlatformInfo, error) {
	if ownerID == "" {
		return nil, invalid("owner_id", ErrOwnerRequired)
	}

	names := make(map[string]string)
	if s.sa != nil {
		accounts, err := s.sa.ListByOwner(ctx, ownerID)
		if err != nil {
			s.log.Info(err.Error())
			return nil, err
		}
		for _, acc := range accounts {
			names[acc.Platform] = acc.AccountName
		}
	}

	var infos []transfer.PlatformInfo
	for _, name := range s.registry.Names() {
		creds, err := s.creds.Credentials(ctx, ownerID, name)
		if err != nil {
			s.log.WithField("platform", name).WithError(err).Warn("credentials lookup failed")
		}
		infos = append(infos, transfer.PlatformInfo{
			Name:        name,
			Connected:   err == nil && creds != nil,
			AccountName: names[name],
		})
	}
	return infos, nil
}
