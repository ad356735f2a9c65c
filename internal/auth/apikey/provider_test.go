package apikey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	store, err := NewStore([]Entry{
		{ID: "dev1", Name: "Developer", Digest: digest("dev1-key"), Allowed: []string{"read_*"},
			Quota: &auth.Quota{RatePerSecond: 10.0 / 60, Burst: 10}},
		{ID: "ops", Digest: digest("ops-key")},
	})
	require.NoError(t, err)

	return NewProvider(store)
}

func TestProvider_Authenticate(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t)

	tests := []struct {
		name        string
		creds       auth.Credentials
		wantID      string
		wantAllowed []string
		wantErr     error
	}{
		{
			name:        "header key",
			creds:       auth.Credentials{APIKey: "dev1-key"},
			wantID:      "dev1",
			wantAllowed: []string{"read_*"},
		},
		{
			name:        "opaque bearer value",
			creds:       auth.Credentials{Bearer: "ops-key"},
			wantID:      "ops",
			wantAllowed: []string{"*"},
		},
		{name: "header wins over bearer", creds: auth.Credentials{APIKey: "ops-key", Bearer: "dev1-key"}, wantID: "ops",
			wantAllowed: []string{"*"}},
		{name: "unknown key", creds: auth.Credentials{APIKey: "nope"}, wantErr: util.ErrInvalidCredential},
		{name: "jwt-shaped bearer not applicable", creds: auth.Credentials{Bearer: "a.b.c"}, wantErr: util.ErrNotApplicable},
		{name: "no credentials", creds: auth.Credentials{}, wantErr: util.ErrNotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			creds := tt.creds
			identity, err := p.Authenticate(context.Background(), &creds)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, identity.ID())
			assert.Equal(t, auth.MethodAPIKey, identity.Method())
			assert.Equal(t, tt.wantAllowed, identity.AllowedPatterns())
		})
	}
}

func TestProvider_CarriesQuota(t *testing.T) {
	t.Parallel()

	identity, err := newTestProvider(t).Authenticate(context.Background(), &auth.Credentials{APIKey: "dev1-key"})
	require.NoError(t, err)
	require.NotNil(t, identity.Quota())
	assert.Equal(t, 10, identity.Quota().Burst)
	assert.Equal(t, "Developer", identity.Name())
}
