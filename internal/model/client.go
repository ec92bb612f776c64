package model

import "time"

// Client is a tenant: one external WordPress site.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	WordPressURL string    `json:"wordpress_url"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// WordPress credentials used by form discovery. The application
	// password is sealed at rest and never serialized.
	WordPressUsername       string `json:"wordpress_username,omitempty"`
	WordPressPasswordSealed []byte `json:"-"`
}

// HasWordPressCredentials reports whether discovery can authenticate.
func (c *Client) HasWordPressCredentials() bool {
	return c.WordPressUsername != "" && len(c.WordPressPasswordSealed) > 0
}

// ClientCreateResponse is returned once when a client is created.
// APIKey is the plaintext connector key and is never retrievable again.
type ClientCreateResponse struct {
	ClientID     string `json:"client_id"`
	Name         string `json:"name"`
	WordPressURL string `json:"wordpress_url"`
	APIKey       string `json:"api_key"`
}
