// Package managed discovers Airflow servers run by hosted services: the
// Conveyor CLI, the Astronomer platform API and Airflow deployments in the
// current Kubernetes context.
package managed

import (
	"github.com/terakael/flowrs/internal/config"
)

// Discoverers returns a discoverer for every supported managed service,
// keyed by the service name used in the config file.
func Discoverers() map[string]config.Discoverer {
	return map[string]config.Discoverer{
		config.ServiceConveyor:   NewConveyor(),
		config.ServiceAstronomer: NewAstronomer(),
		config.ServiceKubernetes: NewKubernetes(""),
	}
}
