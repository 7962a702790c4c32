package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"clipshelf/internal/client"
	"clipshelf/internal/config"
)

type commandContext struct {
	configFlag *string
	serverFlag *string
	jsonFlag   *bool

	serverOnce sync.Once
	serverCfg  *config.Config
	serverErr  error

	clientOnce sync.Once
	clientCfg  *config.Config
	clientErr  error
}

func newCommandContext(configFlag, serverFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		serverFlag: serverFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureServerConfig loads the full configuration needed to open the stores.
func (c *commandContext) ensureServerConfig() (*config.Config, error) {
	c.serverOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.serverErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.serverErr = err
			return
		}
		c.serverCfg = cfg
	})
	return c.serverCfg, c.serverErr
}

// ensureClientConfig loads the configuration needed to reach a server.
func (c *commandContext) ensureClientConfig() (*config.Config, error) {
	c.clientOnce.Do(func() {
		cfg, _, _, err := config.LoadClient(c.configPath())
		if err != nil {
			c.clientErr = err
			return
		}
		if c.serverFlag != nil {
			if override := strings.TrimRight(strings.TrimSpace(*c.serverFlag), "/"); override != "" {
				cfg.Client.ServerURL = override
			}
		}
		c.clientCfg = cfg
	})
	return c.clientCfg, c.clientErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) tokenStore() (*client.FileTokenStore, error) {
	cfg, err := c.ensureClientConfig()
	if err != nil {
		return nil, err
	}
	return client.NewFileTokenStore(cfg.Client.SessionFile), nil
}

// apiClient builds a client seeded with the saved session for the server.
func (c *commandContext) apiClient() (*client.Client, error) {
	cfg, err := c.ensureClientConfig()
	if err != nil {
		return nil, err
	}
	store, err := c.tokenStore()
	if err != nil {
		return nil, err
	}
	return client.NewFromConfig(cfg, store)
}

// wrapClientError adds a hint for the failures users can act on.
func wrapClientError(err error, baseURL string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, client.ErrServerUnreachable):
		return fmt.Errorf("%w; start it with `clipshelf serve` or check --server (%s)", err, baseURL)
	default:
		return err
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
