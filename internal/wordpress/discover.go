package wordpress

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fdcollector/fdc/internal/model"
)

// DiscoveredForm is a form definition read from a form plugin.
type DiscoveredForm struct {
	ExternalFormID string
	Name           string
	Plugin         string
	Schema         json.RawMessage
}

type gravityForm struct {
	ID     model.FlexString `json:"id"`
	Title  string           `json:"title"`
	Fields json.RawMessage  `json:"fields"`
}

type contactForm7List struct {
	ContactForms []json.RawMessage `json:"contact_forms"`
}

type contactForm7 struct {
	ID    model.FlexString `json:"id"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
}

func basicAuth(creds *BasicAuth) func(*http.Request) {
	if creds == nil {
		return nil
	}
	return func(req *http.Request) {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
}

// DiscoverGravityForms lists forms from the Gravity Forms REST API. The
// schema of each form is its fields array.
func (c *Client) DiscoverGravityForms(ctx context.Context, siteURL string, creds *BasicAuth) ([]DiscoveredForm, error) {
	var forms []gravityForm
	if err := c.getJSON(ctx, endpoint(siteURL, GravityFormsPath), basicAuth(creds), &forms); err != nil {
		return nil, err
	}

	out := make([]DiscoveredForm, 0, len(forms))
	for _, f := range forms {
		if f.ID == "" {
			continue
		}
		out = append(out, DiscoveredForm{
			ExternalFormID: f.ID.String(),
			Name:           f.Title,
			Plugin:         model.PluginGravityForms,
			Schema:         nonNullJSON(f.Fields),
		})
	}
	return out, nil
}

// DiscoverContactForm7 lists forms from the Contact Form 7 REST API. The
// schema of each form is the whole form document.
func (c *Client) DiscoverContactForm7(ctx context.Context, siteURL string, creds *BasicAuth) ([]DiscoveredForm, error) {
	var list contactForm7List
	if err := c.getJSON(ctx, endpoint(siteURL, ContactForm7FormPath), basicAuth(creds), &list); err != nil {
		return nil, err
	}

	out := make([]DiscoveredForm, 0, len(list.ContactForms))
	for _, raw := range list.ContactForms {
		var f contactForm7
		if err := json.Unmarshal(raw, &f); err != nil || f.ID == "" {
			continue
		}
		out = append(out, DiscoveredForm{
			ExternalFormID: f.ID.String(),
			Name:           f.Title.Rendered,
			Plugin:         model.PluginContactForm7,
			Schema:         raw,
		})
	}
	return out, nil
}

func nonNullJSON(doc json.RawMessage) json.RawMessage {
	if len(doc) == 0 || string(doc) == "null" {
		return nil
	}
	return doc
}
