package sdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/scansetu/scansetu/pkg/authctx"
)

// Profiles is the Profile Store backed by the API server. Role assignment
// happens on the server; the client only writes id, email and full name.
type Profiles struct {
	client *Client
}

var _ authctx.ProfileStore = (*Profiles)(nil)

func NewProfiles(client *Client) *Profiles {
	return &Profiles{client: client}
}

type profileRow struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UpsertProfile implements authctx.ProfileStore.
func (p *Profiles) UpsertProfile(ctx context.Context, in authctx.ProfileInput) error {
	body := profileRow{ID: in.ID, Email: in.Email, FullName: in.FullName}
	return p.client.do(ctx, p.client.authed, http.MethodPut, "/rest/v1/profiles", nil, body, nil)
}

// GetProfile implements authctx.ProfileStore. The server answers a missing
// row with a JSON null.
func (p *Profiles) GetProfile(ctx context.Context, userID string) (*authctx.Profile, error) {
	var row *profileRow
	path := "/rest/v1/profiles/" + url.PathEscape(userID)
	if err := p.client.do(ctx, p.client.authed, http.MethodGet, path, nil, nil, &row); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &authctx.Profile{
		ID:       row.ID,
		Email:    row.Email,
		FullName: row.FullName,
		Role:     authctx.Role(row.Role),
	}, nil
}
