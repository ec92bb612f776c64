package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/fdcollector/fdc/internal/model"
)

// BulkEntry is one submission exported by the connector plugin.
type BulkEntry struct {
	FormID      model.FlexString `json:"form_id"`
	FormName    model.FlexString `json:"form_name"`
	FormPlugin  model.FlexString `json:"form_plugin"`
	ExternalID  model.FlexString `json:"external_id"`
	Data        json.RawMessage  `json:"submission_data"`
	SubmittedAt model.FlexString `json:"submitted_at"`

	// Err is set when the element is an object whose fields do not decode.
	Err error `json:"-"`
}

// FetchBulkEntries downloads every entry the connector plugin exports.
// The call authenticates with the client's API key as a bearer token.
//
// A body that is not a JSON array yields no entries. Elements that are not
// objects are returned as nil so callers keep positions stable; objects
// that fail to decode carry the error in Err.
func (c *Client) FetchBulkEntries(ctx context.Context, siteURL, apiKey string) ([]*BulkEntry, error) {
	var body json.RawMessage
	err := c.getJSON(ctx, endpoint(siteURL, BulkSyncPath), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}, &body)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return []*BulkEntry{}, nil
	}

	entries := make([]*BulkEntry, len(raw))
	for i, item := range raw {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var entry BulkEntry
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			entries[i] = &BulkEntry{Err: err}
			continue
		}
		entries[i] = &entry
	}
	return entries, nil
}
