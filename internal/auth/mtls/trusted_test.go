package mtls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []string
		wantLen int
		wantErr bool
	}{
		{name: "empty", entries: nil, wantLen: 0},
		{name: "single ip", entries: []string{"10.0.0.1"}, wantLen: 1},
		{name: "cidr and ip", entries: []string{"10.0.0.0/8", " ::1 ", ""}, wantLen: 2},
		{name: "bad cidr", entries: []string{"10.0.0.0/33"}, wantErr: true},
		{name: "bad ip", entries: []string{"proxy.local"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tp, err := ParseTrustedProxies(tt.entries)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, tp.Len())
		})
	}
}

func TestTrustedProxies_Contains(t *testing.T) {
	t.Parallel()

	tp, err := ParseTrustedProxies([]string{"10.1.0.0/16", "192.168.1.10", "fd00::/8"})
	require.NoError(t, err)

	tests := []struct {
		ip   string
		want bool
	}{
		{ip: "10.1.2.3", want: true},
		{ip: "10.2.0.1", want: false},
		{ip: "192.168.1.10", want: true},
		{ip: "192.168.1.11", want: false},
		{ip: "::ffff:192.168.1.10", want: true},
		{ip: "fd12::1", want: true},
		{ip: "not-an-ip", want: false},
		{ip: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tp.Contains(tt.ip))
		})
	}

	var none TrustedProxies
	assert.False(t, none.Contains("127.0.0.1"))
}
