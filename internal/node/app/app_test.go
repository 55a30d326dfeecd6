package app

import (
	"testing"

	"github.com/anthanhphan/go-shard-ring/internal/node/config"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/stretchr/testify/assert"
)

func TestSelfDescriptor(t *testing.T) {
	hasher := ring.NewSHA256Hasher(ring.DefaultSize)

	t.Run("derived from name host and port", func(t *testing.T) {
		cfg := config.DefaultConfig()

		self := selfDescriptor(cfg, hasher)

		assert.Equal(t, ring.Node{Host: "localhost", Port: 3001, Name: "node-1", Key: 1778}, self)
	})

	t.Run("pinned ring key", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Server.RingKey = 700

		assert.Equal(t, 700, selfDescriptor(cfg, hasher).Key)
	})
}

func TestOptions(t *testing.T) {
	cfg := config.DefaultConfig()

	WithName("node-2")(cfg)
	WithPort(3002)(cfg)
	assert.Equal(t, "node-2", cfg.Server.Name)
	assert.Equal(t, 3002, cfg.Server.Port)

	WithName("")(cfg)
	WithPort(0)(cfg)
	assert.Equal(t, "node-2", cfg.Server.Name, "empty flag keeps the configured name")
	assert.Equal(t, 3002, cfg.Server.Port, "zero flag keeps the configured port")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New("", WithName("bad/name"))
	assert.Error(t, err)
}
