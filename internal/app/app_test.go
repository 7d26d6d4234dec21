package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/config"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/notify"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
)

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Driver = config.DriverMemory

	s, closeFn, err := OpenStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &repository.MemoryStore{}, s)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Driver = "sqlite"

	_, _, err := OpenStore(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, `unknown store driver "sqlite"`)
}

func TestNewNotifier(t *testing.T) {
	cfg := config.Defaults()
	assert.IsType(t, &notify.LogNotifier{}, NewNotifier(cfg, zap.NewNop()))

	cfg.Mail.Provider = config.MailSendgrid
	cfg.Mail.SendgridAPIKey = "SG.key"
	assert.IsType(t, &notify.SendgridNotifier{}, NewNotifier(cfg, zap.NewNop()))
}
