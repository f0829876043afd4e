package coordinator

import (
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/tqrg-bot/ambari-sync/internal/subscription"
)

// channels binds every push destination to its handler. Events are stored
// under their destination name; configuration events reload cluster-env.
func (c *defaultCoordinator) channels() []subscription.Channel {
	channels := make([]subscription.Channel, 0, len(subscription.Destinations))
	for _, dest := range subscription.Destinations {
		handler := c.storeEvent(dest)
		if dest == subscription.DestConfigs {
			handler = c.onConfigsEvent
		}
		channels = append(channels, subscription.Channel{Destination: dest, Handler: handler})
	}
	return channels
}

func (c *defaultCoordinator) storeEvent(destination string) func(body []byte) {
	return func(body []byte) {
		if err := c.store.Apply(destination, body); err != nil {
			slog.Warn("Dropping push event", "destination", destination, "error", err)
		}
	}
}

// onConfigsEvent reloads cluster-env when the event touches it
func (c *defaultCoordinator) onConfigsEvent(body []byte) {
	if !gjson.GetBytes(body, `configs.#(type=="`+clusterEnvSite+`")`).Exists() {
		return
	}
	err := c.Refresh(TaskUpdateClusterEnv)
	switch {
	case err == nil:
		slog.Debug("Reloading cluster-env after configuration change")
	case errors.Is(err, ErrAlreadyInProgress):
		slog.Debug("Cluster-env reload already in progress")
	default:
		slog.Warn("Failed to reload cluster-env", "error", err)
	}
}
