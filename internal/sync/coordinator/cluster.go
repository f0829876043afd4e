package coordinator

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/tqrg-bot/ambari-sync/internal/store"
)

const (
	metricsService = "AMBARI_METRICS"
	stateStarted   = "STARTED"
)

func errMissingField(path string) error {
	return fmt.Errorf("response has no %s", path)
}

// installedServices returns the service names of the services dataset in payload order
func (c *defaultCoordinator) installedServices() []string {
	var names []string
	c.store.Query(store.Services, "items.#.ServiceInfo.service_name").ForEach(func(_, v gjson.Result) bool {
		names = append(names, v.String())
		return true
	})
	return names
}

// serviceState returns the state of an installed service, empty when unknown
func (c *defaultCoordinator) serviceState(service string) string {
	return c.store.Query(store.Services,
		`items.#(ServiceInfo.service_name=="`+service+`").ServiceInfo.state`).String()
}

// metricsServiceStarted is the precondition of the lazy host metrics request
func (c *defaultCoordinator) metricsServiceStarted() bool {
	return c.serviceState(metricsService) == stateStarted
}

// hasComponent reports whether any installed service declares the component
func (c *defaultCoordinator) hasComponent(component string) bool {
	found := false
	c.store.Query(store.Services, "items.#.components").ForEach(func(_, comps gjson.Result) bool {
		found = comps.Get(`#(ServiceComponentInfo.component_name=="` + component + `")`).Exists()
		return !found
	})
	return found
}

// haEnabled reports NameNode HA, detected by installed journal nodes
func (c *defaultCoordinator) haEnabled() bool {
	return c.store.Query(store.ComponentsState,
		`items.#(ServiceComponentInfo.component_name=="JOURNALNODE")`).Exists()
}
