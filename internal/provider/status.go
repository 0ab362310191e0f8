package provider

import (
	"fmt"
	"sort"
)

// LeaseStatus is the provider's view of a running lease.
type LeaseStatus struct {
	Services       map[string]*ServiceStatus  `json:"services"`
	ForwardedPorts map[string][]ForwardedPort `json:"forwarded_ports"`
}

type ServiceStatus struct {
	Name      string   `json:"name"`
	Available int32    `json:"available"`
	Total     int32    `json:"total"`
	URIs      []string `json:"uris"`

	ObservedGeneration int64 `json:"observed_generation"`
	Replicas           int32 `json:"replicas"`
	UpdatedReplicas    int32 `json:"updated_replicas"`
	ReadyReplicas      int32 `json:"ready_replicas"`
	AvailableReplicas  int32 `json:"available_replicas"`
}

type ForwardedPort struct {
	Host         string `json:"host"`
	Port         uint16 `json:"port"`
	ExternalPort uint16 `json:"externalPort"`
	Proto        string `json:"proto"`
	Name         string `json:"name"`
}

// ServiceReadiness is the replica count of one service.
type ServiceReadiness struct {
	Name      string   `json:"name"`
	Available int32    `json:"available"`
	Total     int32    `json:"total"`
	URIs      []string `json:"uris"`
}

// Ready reports whether every replica of the service is available.
func (s ServiceReadiness) Ready() bool {
	return s.Total > 0 && s.Available >= s.Total
}

// DeploymentEndpoint is the reachable address of a deployment plus the
// readiness of its services. URL is empty when nothing is exposed.
type DeploymentEndpoint struct {
	URL      string             `json:"url"`
	Services []ServiceReadiness `json:"services"`
}

// Ready reports whether the lease runs at least one service and all of them
// are fully available.
func (e *DeploymentEndpoint) Ready() bool {
	if len(e.Services) == 0 {
		return false
	}
	for _, s := range e.Services {
		if !s.Ready() {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PublicURL returns the first forwarded port as http://host:port, otherwise
// the first service URI, otherwise "". Services are visited by name.
func (s *LeaseStatus) PublicURL() string {
	for _, name := range sortedKeys(s.ForwardedPorts) {
		for _, port := range s.ForwardedPorts[name] {
			if port.Host != "" && port.ExternalPort != 0 {
				return fmt.Sprintf("http://%s:%d", port.Host, port.ExternalPort)
			}
		}
	}
	for _, name := range sortedKeys(s.Services) {
		if svc := s.Services[name]; svc != nil && len(svc.URIs) > 0 {
			return svc.URIs[0]
		}
	}
	return ""
}

// Readiness lists the services sorted by name.
func (s *LeaseStatus) Readiness() []ServiceReadiness {
	var out []ServiceReadiness
	for _, name := range sortedKeys(s.Services) {
		svc := s.Services[name]
		if svc == nil {
			continue
		}
		out = append(out, ServiceReadiness{Name: name, Available: svc.Available, Total: svc.Total, URIs: svc.URIs})
	}
	return out
}
