package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"github.com/SCPrime/ai-Trader-sub001/config"
)

// Client wraps the HashiCorp Vault client for notification webhook URLs
// and other operational secrets. With Vault disabled it degrades to an
// in-memory store so development setups need no Vault server.
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu    sync.RWMutex
	cache map[string]string
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]string),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]string),
	}, nil
}

// GetSecret reads a single string secret by name. Vault hits are cached
// until the process restarts.
func (c *Client) GetSecret(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	if cached, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return "", fmt.Errorf("secret %q not found and vault is disabled", name)
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret %q not found", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret format")
	}

	value, ok := data[name].(string)
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}

	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()

	return value, nil
}

// SetSecret stores a string secret. With Vault disabled the value lives
// in the in-memory store only.
func (c *Client) SetSecret(ctx context.Context, name, value string) error {
	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			name: value,
		},
	}
	if _, err := c.client.Logical().WriteWithContext(ctx, path, payload); err != nil {
		return fmt.Errorf("failed to store secret in vault: %w", err)
	}
	return nil
}

// WebhookURL resolves the delivery URL for a notification channel. The
// configured URL wins; Vault supplies it when config leaves it blank.
func (c *Client) WebhookURL(ctx context.Context, channel, configured string) string {
	if configured != "" {
		return configured
	}
	url, err := c.GetSecret(ctx, "webhook_"+channel)
	if err != nil {
		return ""
	}
	return url
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}
