package usb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.EqualValues(t, DefaultVendorID, cfg.VendorID)
	assert.Zero(t, cfg.ProductID)
	assert.Zero(t, cfg.InEndpoint)
	assert.Zero(t, cfg.OutEndpoint)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestCloseIsIdempotent(t *testing.T) {
	d := &Device{}
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}
