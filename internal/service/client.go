package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
	"github.com/fdcollector/fdc/internal/wordpress"
)

// ClientService manages tenants.
type ClientService struct {
	clients ClientStore
	sealer  *auth.Sealer
	now     func() time.Time
}

// NewClientService creates a new ClientService.
func NewClientService(clients ClientStore, sealer *auth.Sealer) *ClientService {
	return &ClientService{clients: clients, sealer: sealer, now: time.Now}
}

// CreateClientInput defines input for creating a client.
type CreateClientInput struct {
	Name         string
	WordPressURL string
	// Optional application password credentials used by form discovery.
	WordPressUsername string
	WordPressPassword string
	CreatedBy         string
}

// Create stores the client and its connector key ("<name>-connector")
// atomically. The plaintext key is in the response and nowhere else.
func (s *ClientService) Create(ctx context.Context, input CreateClientInput) (*model.ClientCreateResponse, error) {
	name := strings.TrimSpace(input.Name)
	siteURL := strings.TrimSpace(input.WordPressURL)
	if name == "" || siteURL == "" {
		return nil, ErrClientFieldsRequired
	}
	if err := wordpress.ValidateSiteURL(siteURL); err != nil {
		return nil, ErrInvalidWordPressURL
	}

	now := s.now().UTC()
	client := &model.Client{
		ID:                newID(),
		Name:              name,
		WordPressURL:      siteURL,
		CreatedBy:         input.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
		WordPressUsername: strings.TrimSpace(input.WordPressUsername),
	}
	if client.WordPressUsername != "" && input.WordPressPassword != "" {
		sealed, err := s.sealer.Seal([]byte(input.WordPressPassword))
		if err != nil {
			return nil, fmt.Errorf("seal WordPress password: %w", err)
		}
		client.WordPressPasswordSealed = sealed
	}

	key, plaintext, err := newKeyRecord(s.sealer, input.CreatedBy, &client.ID, name+"-connector", now)
	if err != nil {
		return nil, err
	}

	if err := s.clients.CreateClientWithKey(ctx, client, key); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &model.ClientCreateResponse{
		ClientID:     client.ID,
		Name:         client.Name,
		WordPressURL: client.WordPressURL,
		APIKey:       plaintext,
	}, nil
}

// Get returns one client.
func (s *ClientService) Get(ctx context.Context, id string) (*model.Client, error) {
	client, err := s.clients.GetClientByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// List returns all clients, newest first.
func (s *ClientService) List(ctx context.Context) ([]*model.Client, error) {
	clients, err := s.clients.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Delete removes a client with its forms, submissions and keys.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	if err := s.clients.DeleteClient(ctx, id); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return ErrClientNotFound
		}
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}
