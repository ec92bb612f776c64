package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
	"github.com/fdcollector/fdc/internal/wordpress"
)

// DiscoverResult lists the forms found on a client site.
type DiscoverResult struct {
	Discovered int           `json:"discovered"`
	Forms      []*model.Form `json:"forms"`
}

// Discover probes the client site for Gravity Forms and Contact Form 7
// forms and registers them. Each probe may fail independently; a failed
// probe contributes no forms. Existing forms only get their schema
// refreshed.
func (s *SyncService) Discover(ctx context.Context, clientID string) (*DiscoverResult, error) {
	client, err := s.clients.GetClientByID(ctx, clientID)
	if err != nil {
		return nil, s.clientLookupError(err)
	}

	var creds *wordpress.BasicAuth
	if client.HasWordPressCredentials() {
		password, err := s.sealer.Open(client.WordPressPasswordSealed)
		if err != nil {
			return nil, fmt.Errorf("unseal WordPress password: %w", err)
		}
		creds = &wordpress.BasicAuth{Username: client.WordPressUsername, Password: string(password)}
	}

	probes := []struct {
		plugin string
		fn     func(context.Context, string, *wordpress.BasicAuth) ([]wordpress.DiscoveredForm, error)
	}{
		{model.PluginGravityForms, s.wp.DiscoverGravityForms},
		{model.PluginContactForm7, s.wp.DiscoverContactForm7},
	}

	found := make([][]wordpress.DiscoveredForm, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			forms, err := p.fn(ctx, client.WordPressURL, creds)
			if err != nil {
				s.logger.Info("form plugin probe failed",
					slog.String("client_id", client.ID),
					slog.String("plugin", p.plugin),
					slog.String("error", err.Error()),
				)
				return nil
			}
			found[i] = forms
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &DiscoverResult{Forms: make([]*model.Form, 0)}
	for _, forms := range found {
		for _, d := range forms {
			now := s.now().UTC()
			stored, err := s.forms.UpsertForm(ctx, &model.Form{
				ID:             newID(),
				ClientID:       client.ID,
				ExternalFormID: d.ExternalFormID,
				Name:           d.Name,
				Plugin:         d.Plugin,
				Schema:         normalizeSchema(d.Schema),
				CreatedAt:      now,
				UpdatedAt:      now,
			}, model.OverwriteSchema)
			if err != nil {
				return nil, fmt.Errorf("store discovered form %s/%s: %w", d.Plugin, d.ExternalFormID, err)
			}
			result.Forms = append(result.Forms, stored)
		}
	}

	result.Discovered = len(result.Forms)
	s.metrics.AddFormsDiscovered(result.Discovered)
	return result, nil
}

func (s *SyncService) clientLookupError(err error) error {
	if errors.Is(err, repository.ErrClientNotFound) {
		return ErrClientNotFound
	}
	return fmt.Errorf("get client: %w", err)
}
