package networking

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressReferencesPrivateIp(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "loopback", address: "127.0.0.1:443", wantErr: true},
		{name: "rfc1918_10", address: "10.1.2.3:8080", wantErr: true},
		{name: "rfc1918_192", address: "192.168.1.1:443", wantErr: true},
		{name: "link_local", address: "169.254.10.10:80", wantErr: true},
		{name: "ipv6_loopback", address: "[::1]:443", wantErr: true},
		{name: "public", address: "93.184.216.34:443", wantErr: false},
		{name: "not_an_ip", address: "example.com:443", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := AddressReferencesPrivateIp(tc.address)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatingTransportRejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	transport := &ValidatingTransport{Transport: http.DefaultTransport}
	req := httptest.NewRequest(http.MethodGet, "http://example.com/jwks", nil)

	_, err := transport.RoundTrip(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTTPS")
}

func TestBuilderAllowsPrivateEndpointsInDevMode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHttpClientBuilder().WithPrivateIPs(true).Build()
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuilderRejectsMissingCABundle(t *testing.T) {
	t.Parallel()

	_, err := NewHttpClientBuilder().WithCABundle("/does/not/exist.pem").Build()
	require.Error(t, err)
}
