package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velluxe/storefront-core/types"
)

const minimalYAML = `
api:
  base_url: "https://shop.example.com"
`

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	cfg, err := NewLoader().LoadFromBytes([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", cfg.API.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.Retries)
	assert.Equal(t, time.Second, cfg.API.CoalesceGrace)
	assert.Contains(t, cfg.API.SensitivePaths, "/cart")

	assert.Equal(t, 5*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, int64(1200), cfg.Checkout.TaxRateBasisPoints)
	assert.Equal(t, int64(10000), cfg.Checkout.FreeShippingThreshold)
	assert.Equal(t, int64(150), cfg.Checkout.ShippingFee)
	assert.Equal(t, 8*time.Second, cfg.Checkout.CartFetchWatchdog)
}

func TestLoadFromBytesOverrides(t *testing.T) {
	yaml := `
api:
  base_url: "https://shop.example.com"
  timeout: 10s
  retries: 1
checkout:
  tax_rate_basis_points: 800
  shipping_fee: 200
`
	cfg, err := NewLoader().LoadFromBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 1, cfg.API.Retries)
	assert.Equal(t, int64(800), cfg.Checkout.TaxRateBasisPoints)
	assert.Equal(t, int64(200), cfg.Checkout.ShippingFee)
	assert.Equal(t, 8*time.Second, cfg.Checkout.CartFetchWatchdog, "unset fields still default")
}

func TestLoadFromBytesRequiresBaseURL(t *testing.T) {
	_, err := NewLoader().LoadFromBytes([]byte(`logger: {level: debug}`))
	assert.ErrorIs(t, err, types.ErrConfigValidateFailed)
}

func TestLoadFromBytesRejectsBadYAML(t *testing.T) {
	_, err := NewLoader().LoadFromBytes([]byte("api: [not a map"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	cfg, err := NewLoader().LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com", cfg.API.BaseURL)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := NewLoader().LoadFromFile("/nonexistent/config.yml")
	assert.Error(t, err)

	_, err = NewLoader().LoadFromFile("")
	assert.ErrorIs(t, err, types.ErrConfigNotFound)
}

func TestStaticManager(t *testing.T) {
	cfg := Defaults()
	cfg.API.BaseURL = "https://shop.example.com"

	cm, err := NewStaticManager(cfg)
	require.NoError(t, err)
	assert.Same(t, cfg, cm.GetConfig())

	_, err = NewStaticManager(nil)
	assert.ErrorIs(t, err, types.ErrConfigIsNil)
}

func TestConfigurationManagerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	cm, err := NewConfigurationManager(path)
	require.NoError(t, err)
	require.NotNil(t, cm.GetConfig())
	assert.Equal(t, "https://shop.example.com", cm.GetConfig().API.BaseURL)
}

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	t.Setenv("SHOP_BASE_URL", "https://env.example.com")

	cfg, err := NewLoader().LoadFromBytes([]byte("api:\n  base_url: ${SHOP_BASE_URL}\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
}
