package resolver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazy-lister/internal/platform/logging"
)

func TestNormalize(t *testing.T) {
	servers, invalid := Normalize([]string{
		"8.8.8.8",
		" 1.1.1.1:5353 ",
		"[2001:4860:4860::8888]",
		"2001:4860:4860::8844",
		"",
		"dns.google",
		"9.9.9.9:99999",
	})
	assert.Equal(t, []string{
		"8.8.8.8:53",
		"1.1.1.1:5353",
		"[2001:4860:4860::8888]:53",
		"[2001:4860:4860::8844]:53",
	}, servers)
	assert.Equal(t, []string{"dns.google", "9.9.9.9:99999"}, invalid)
}

func TestNew_Inactive(t *testing.T) {
	o := New(nil, logging.Discard())
	assert.False(t, o.Active())
	assert.Same(t, net.DefaultResolver, o.Resolver())
	assert.Empty(t, o.Servers())

	before := net.DefaultResolver
	o.Install(logging.Discard())
	assert.Same(t, before, net.DefaultResolver)
}

func TestNew_AllInvalid(t *testing.T) {
	o := New([]string{"not-an-ip"}, logging.Discard())
	assert.False(t, o.Active())
}

func TestInstall(t *testing.T) {
	before := net.DefaultResolver
	t.Cleanup(func() { net.DefaultResolver = before })

	o := New([]string{"8.8.8.8", "1.1.1.1"}, logging.Discard())
	require.True(t, o.Active())
	assert.Equal(t, []string{"8.8.8.8:53", "1.1.1.1:53"}, o.Servers())
	assert.True(t, o.Resolver().PreferGo)

	o.Install(logging.Discard())
	assert.Same(t, o.Resolver(), net.DefaultResolver)
}

func TestHTTPClient(t *testing.T) {
	o := New([]string{"8.8.8.8"}, logging.Discard())

	client := o.HTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, client.Timeout)
	assert.NotNil(t, client.Transport)

	client = New(nil, logging.Discard()).HTTPClient(0)
	assert.Zero(t, client.Timeout)
}
