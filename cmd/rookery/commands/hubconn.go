package commands

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/corvid-labs/rookery/internal/config"
	"github.com/corvid-labs/rookery/internal/printer"
	"github.com/corvid-labs/rookery/pkg/hub"
)

// dialHub opens a hub client for inspection commands. Unlike agent
// sessions it registers nothing and never waits for other agents.
func dialHub(ctx context.Context, cfg *config.RookeryConfig) (*hub.Client, error) {
	opts, err := redis.ParseURL(cfg.Hub.URL)
	if err != nil {
		return nil, printer.Error(
			"Invalid hub URL",
			err.Error(),
			[]string{"Set hub.url in rookery.yml or the REDIS_URL environment variable"},
		)
	}
	opts.DialTimeout = cfg.ConnectTimeout()
	opts.ReadTimeout = cfg.ReadTimeout()

	client, err := hub.NewClient(opts, cfg.Instance)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Could not reach the hub",
			err.Error(),
			map[string]string{"URL": cfg.Hub.URL, "Instance": cfg.Instance},
			[]string{"Check that Redis is running and reachable"},
		)
	}
	return client, nil
}
