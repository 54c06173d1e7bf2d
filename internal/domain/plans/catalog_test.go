package plans

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plansYAML = `
plans:
  - name: Basic
    price: 5
    concurrent_streams: 1
    downloads_enabled: false
    4k_enabled: false
    role_id: -1001
    onetime_price_ref: price_basic
  - name: Standard
    price: 10
    concurrent_streams: 2
    downloads_enabled: true
    4k_enabled: false
    role_id: -1002
    onetime_price_ref: price_standard
  - name: Extra
    price: 15
    concurrent_streams: 4
    downloads_enabled: true
    4k_enabled: true
    role_id: -1003
    onetime_price_ref: price_extra
    subscription_price_ref: sub_extra
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yml")
	require.NoError(t, os.WriteFile(path, []byte(plansYAML), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.All(), 3)

	extra, ok := c.ByName("Extra")
	require.True(t, ok)
	assert.True(t, extra.Enabled4K)
	assert.True(t, extra.DownloadsEnabled)
	assert.Equal(t, 4, extra.ConcurrentStreams)
	assert.Equal(t, "sub_extra", extra.SubscriptionPriceRef)

	standard, ok := c.ByRole(-1002)
	require.True(t, ok)
	assert.Equal(t, "Standard", standard.Name)

	_, ok = c.ByName("Premium")
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		plans []Plan
	}{
		{"empty", nil},
		{"no name", []Plan{{OnetimePriceRef: "p", RoleID: 1}}},
		{"no price ref", []Plan{{Name: "A", RoleID: 1}}},
		{"no role", []Plan{{Name: "A", OnetimePriceRef: "p"}}},
		{"duplicate name", []Plan{
			{Name: "A", OnetimePriceRef: "p", RoleID: 1},
			{Name: "A", OnetimePriceRef: "q", RoleID: 2},
		}},
		{"duplicate role", []Plan{
			{Name: "A", OnetimePriceRef: "p", RoleID: 1},
			{Name: "B", OnetimePriceRef: "q", RoleID: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.plans)
			assert.Error(t, err)
		})
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	c, err := New([]Plan{{Name: "A", OnetimePriceRef: "p", RoleID: 1}})
	require.NoError(t, err)

	all := c.All()
	all[0].Name = "changed"

	p, ok := c.ByName("A")
	require.True(t, ok)
	assert.Equal(t, "A", p.Name)
}
