package beacon

import (
	"context"
	"fmt"

	"github.com/oshokin/safety-beacon/internal/api"
	"github.com/oshokin/safety-beacon/internal/config"
	"github.com/oshokin/safety-beacon/internal/logger"
	"github.com/oshokin/safety-beacon/internal/realtime"
	"github.com/oshokin/safety-beacon/internal/repository/identity"
)

// Options configures the beacon client process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServiceURL overrides the alert-service base URL from config when set.
	ServiceURL string
	// RedisAddress overrides the broker address from config when set.
	RedisAddress string
	// Verbose keeps debug-level logging even when config says otherwise.
	Verbose bool
}

// Run builds the client from configuration and blocks until the context is
// canceled. A missing device identity is generated and persisted; a failure
// to do so is the only unrecoverable startup condition besides bad
// configuration.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "beacon")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok && !opts.Verbose {
		logger.SetLevel(level)
	}

	serviceURL := cfg.ServiceURL
	if opts.ServiceURL != "" {
		serviceURL = opts.ServiceURL
	}

	redisAddress := cfg.RedisAddress
	if opts.RedisAddress != "" {
		redisAddress = opts.RedisAddress
	}

	ident, err := identity.LoadOrCreate(ctx, identity.NewFileRepository(cfg.IdentityFile))
	if err != nil {
		return fmt.Errorf("device identity: %w", err)
	}

	ctx = logger.WithKV(ctx, "device_id", ident.DeviceID)

	client, err := api.NewClient(serviceURL, api.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("alert service client: %w", err)
	}

	// Registration is idempotent server-side; a transient failure here is
	// tolerated because the periodic location push re-registers implicitly.
	if err = client.RegisterDevice(ctx, &api.Device{
		ID:       ident.DeviceID,
		Hostname: ident.Hostname,
		Username: ident.Username,
		Platform: "daemon",
	}); err != nil {
		logger.WarnKV(ctx, "Device registration failed, continuing", "error", err)
	}

	channel := realtime.NewChannel(realtime.RedisOptions{
		Address:  redisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer channel.Close()

	if err = channel.Connect(ctx, ident.DeviceID); err != nil {
		return fmt.Errorf("connect realtime channel: %w", err)
	}

	logger.InfoKV(ctx, "Beacon client started",
		"service_url", serviceURL, "redis_address", redisAddress)

	service := NewService(cfg, ident.DeviceID, client, channel)
	service.Run(ctx)

	logger.Info(ctx, "Beacon client stopped")

	return nil
}
