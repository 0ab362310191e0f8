package yaml

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

// Workload is what a deployment needs from an SDL file: the resource groups
// put on the ledger, the manifest sent to the provider and the manifest
// version hash tying the two together.
type Workload struct {
	Groups   []ledger.GroupSpec
	Manifest []ManifestGroup
	Version  []byte
}

type ManifestGroup struct {
	Name     string            `json:"name"`
	Services []ManifestService `json:"services"`
}

type ManifestService struct {
	Name      string              `json:"name"`
	Image     string              `json:"image"`
	Command   []string            `json:"command"`
	Args      []string            `json:"args"`
	Env       []string            `json:"env"`
	Resources ManifestResources   `json:"resources"`
	Count     uint32              `json:"count"`
	Expose    []ManifestExpose    `json:"expose"`
	Params    *ManifestParameters `json:"params"`
}

type ManifestParameters struct {
	Storage []interface{} `json:"storage"`
}

type manifestValue struct {
	Val string `json:"val"`
}

type ManifestResources struct {
	ID  uint32 `json:"id"`
	CPU struct {
		Units manifestValue `json:"units"`
	} `json:"cpu"`
	Memory struct {
		Size manifestValue `json:"size"`
	} `json:"memory"`
	Storage []struct {
		Name string        `json:"name"`
		Size manifestValue `json:"size"`
	} `json:"storage"`
	GPU struct {
		Units manifestValue `json:"units"`
	} `json:"gpu"`
	Endpoints []ManifestEndpoint `json:"endpoints"`
}

type ManifestEndpoint struct {
	Kind           int32  `json:"kind,omitempty"`
	SequenceNumber uint32 `json:"sequence_number"`
}

type ManifestExpose struct {
	Port                   uint32   `json:"port"`
	ExternalPort           uint32   `json:"externalPort"`
	Proto                  string   `json:"proto"`
	Service                string   `json:"service"`
	Global                 bool     `json:"global"`
	Hosts                  []string `json:"hosts"`
	IP                     string   `json:"ip"`
	EndpointSequenceNumber uint32   `json:"endpointSequenceNumber"`
	HTTPOptions            struct {
		MaxBodySize uint32   `json:"maxBodySize"`
		ReadTimeout uint32   `json:"readTimeout"`
		SendTimeout uint32   `json:"sendTimeout"`
		NextTries   uint32   `json:"nextTries"`
		NextTimeout uint32   `json:"nextTimeout"`
		NextCases   []string `json:"nextCases"`
	} `json:"httpOptions"`
}

func defaultExpose(e ManifestExpose) ManifestExpose {
	e.HTTPOptions.MaxBodySize = 1048576
	e.HTTPOptions.ReadTimeout = 60000
	e.HTTPOptions.SendTimeout = 60000
	e.HTTPOptions.NextTries = 3
	e.HTTPOptions.NextCases = []string{"error", "timeout"}
	return e
}

// ManifestJSON renders the manifest with object keys sorted at every level.
func (w *Workload) ManifestJSON() ([]byte, error) {
	return sortedJSON(w.Manifest)
}

func sortedJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func (dy *DeployYamlV2) toWorkload() (*Workload, error) {
	placements := map[string][]string{}
	for _, svcName := range sortedKeys(dy.Deployment) {
		for placement := range dy.Deployment[svcName] {
			placements[placement] = append(placements[placement], svcName)
		}
	}

	workload := &Workload{}
	for _, placementName := range sortedKeys(placements) {
		placement := dy.Profiles.Placement[placementName]
		group := ledger.GroupSpec{Name: placementName}
		group.Requirements.SignedBy = ledger.SignedBy{AllOf: placement.SignedBy.AllOf, AnyOf: placement.SignedBy.AnyOf}
		for _, key := range sortedKeys(placement.Attributes) {
			group.Requirements.Attributes = append(group.Requirements.Attributes, ledger.Attribute{Key: key, Value: placement.Attributes[key]})
		}
		manifestGroup := ManifestGroup{Name: placementName}

		for i, svcName := range placements[placementName] {
			target := dy.Deployment[svcName][placementName]
			svc := dy.Services[svcName]
			price := placement.Pricing[target.Profile]

			resources, err := dy.resources(uint32(i+1), target.Profile, svc)
			if err != nil {
				return nil, fmt.Errorf("service %s, %w", svcName, err)
			}
			count := target.Count
			if count == 0 {
				count = 1
			}
			denom := price.Denom
			if denom == "" {
				denom = "uakt"
			}
			group.Resources = append(group.Resources, ledger.ResourceUnit{
				Resources: resources,
				Count:     count,
				Price:     ledger.DecCoin{Denom: denom, Amount: string(price.Amount)},
			})
			manifestGroup.Services = append(manifestGroup.Services, manifestService(svcName, svc, resources, count))
		}

		workload.Groups = append(workload.Groups, group)
		workload.Manifest = append(workload.Manifest, manifestGroup)
	}

	manifest, err := workload.ManifestJSON()
	if err != nil {
		return nil, fmt.Errorf("failed encode manifest, %w", err)
	}
	sum := sha256.Sum256(manifest)
	workload.Version = sum[:]
	return workload, nil
}

func (dy *DeployYamlV2) resources(id uint32, profile string, svc Service) (ledger.Resources, error) {
	compute := dy.Profiles.Compute[profile].Resources
	res := ledger.Resources{ID: id}

	cpu, err := cpuMillis(compute.Cpu.Units)
	if err != nil {
		return res, err
	}
	memory, err := byteSize(compute.Memory.Size)
	if err != nil {
		return res, err
	}
	res.CPU = ledger.ResourceValue{Val: cpu}
	res.Memory = ledger.ResourceValue{Val: memory}

	if compute.Gpu.Units != "" {
		gpu, err := strconv.ParseUint(string(compute.Gpu.Units), 10, 64)
		if err != nil {
			return res, fmt.Errorf("invalid gpu units %s, %w", compute.Gpu.Units, err)
		}
		res.GPU = ledger.ResourceValue{Val: gpu}
	}

	for _, volume := range compute.Storage {
		size, err := byteSize(volume.Size)
		if err != nil {
			return res, err
		}
		name := volume.Name
		if name == "" {
			name = "default"
		}
		res.Storage = append(res.Storage, ledger.Storage{Name: name, Quantity: ledger.ResourceValue{Val: size}})
	}

	for _, expose := range svc.Expose {
		if !expose.global() {
			continue
		}
		kind := ledger.EndpointRandomPort
		if expose.externalPort() == 80 {
			kind = ledger.EndpointSharedHTTP
		}
		res.Endpoints = append(res.Endpoints, ledger.Endpoint{Kind: kind})
	}
	return res, nil
}

func manifestService(name string, svc Service, res ledger.Resources, count uint32) ManifestService {
	ms := ManifestService{
		Name:    name,
		Image:   svc.Image,
		Command: svc.Command,
		Args:    svc.Args,
		Env:     svc.Env,
		Count:   count,
	}

	ms.Resources.ID = res.ID
	ms.Resources.CPU.Units.Val = res.CPU.String()
	ms.Resources.Memory.Size.Val = res.Memory.String()
	ms.Resources.GPU.Units.Val = res.GPU.String()
	for _, s := range res.Storage {
		ms.Resources.Storage = append(ms.Resources.Storage, struct {
			Name string        `json:"name"`
			Size manifestValue `json:"size"`
		}{Name: s.Name, Size: manifestValue{Val: s.Quantity.String()}})
	}
	for _, ep := range res.Endpoints {
		ms.Resources.Endpoints = append(ms.Resources.Endpoints, ManifestEndpoint{Kind: int32(ep.Kind), SequenceNumber: ep.SequenceNumber})
	}

	for _, expose := range svc.Expose {
		proto := strings.ToUpper(expose.Proto)
		if proto == "" {
			proto = "TCP"
		}
		if len(expose.To) == 0 {
			ms.Expose = append(ms.Expose, defaultExpose(ManifestExpose{
				Port: expose.Port, ExternalPort: expose.externalPort(), Proto: proto, Hosts: expose.Accept,
			}))
			continue
		}
		for _, to := range expose.To {
			ms.Expose = append(ms.Expose, defaultExpose(ManifestExpose{
				Port:         expose.Port,
				ExternalPort: expose.externalPort(),
				Proto:        proto,
				Service:      to.Service,
				Global:       to.Global,
				Hosts:        expose.Accept,
			}))
		}
	}
	return ms
}
