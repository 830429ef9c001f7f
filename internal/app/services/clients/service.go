// Package clients manages the client records an invoice is billed to.
package clients

import (
	"context"
	"errors"
	"strings"

	"github.com/freelancebill/freelancebill/internal/app/domain/client"
	"github.com/freelancebill/freelancebill/internal/app/storage"
	apperrors "github.com/freelancebill/freelancebill/internal/errors"
	"github.com/freelancebill/freelancebill/pkg/logger"
)

// Service manages client records scoped to their owning user.
type Service struct {
	users   storage.UserStore
	clients storage.ClientStore
	log     *logger.Logger
}

// New constructs a client management service.
func New(users storage.UserStore, clients storage.ClientStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("clients")
	}
	return &Service{users: users, clients: clients, log: log}
}

// UpdateInput carries a partial client update. Nil fields are left untouched.
type UpdateInput struct {
	Name         *string
	BusinessName *string
	Email        *string
	Phone        *string
	Address      *string
}

func (s *Service) owner(ctx context.Context, username string) (string, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperrors.Unauthorized("unknown user")
		}
		return "", err
	}
	return u.ID, nil
}

// List returns all clients owned by the user.
func (s *Service) List(ctx context.Context, username string) ([]client.Client, error) {
	userID, err := s.owner(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.clients.ListClients(ctx, userID)
}

// Create adds a client for the user. Only the name is required.
func (s *Service) Create(ctx context.Context, username string, c client.Client) (client.Client, error) {
	userID, err := s.owner(ctx, username)
	if err != nil {
		return client.Client{}, err
	}

	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return client.Client{}, apperrors.Validation("client name is required")
	}
	c.ID = ""
	c.UserID = userID

	created, err := s.clients.CreateClient(ctx, c)
	if err != nil {
		return client.Client{}, err
	}

	s.log.WithField("client_id", created.ID).Info("client created")
	return created, nil
}

// Update applies a partial update to a client owned by the user. Clients of
// other users are reported as not found.
func (s *Service) Update(ctx context.Context, username, id string, in UpdateInput) (client.Client, error) {
	userID, err := s.owner(ctx, username)
	if err != nil {
		return client.Client{}, err
	}

	c, err := s.clients.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return client.Client{}, apperrors.NotFound("client not found")
		}
		return client.Client{}, err
	}
	if c.UserID != userID {
		return client.Client{}, apperrors.NotFound("client not found")
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return client.Client{}, apperrors.Validation("client name cannot be empty")
		}
		c.Name = name
	}
	if in.BusinessName != nil {
		c.BusinessName = *in.BusinessName
	}
	if in.Email != nil {
		c.Email = *in.Email
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	if in.Address != nil {
		c.Address = *in.Address
	}

	updated, err := s.clients.UpdateClient(ctx, c)
	if err != nil {
		return client.Client{}, err
	}

	s.log.WithField("client_id", id).Info("client updated")
	return updated, nil
}
