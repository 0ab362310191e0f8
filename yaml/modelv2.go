package yaml

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/errgo.v2/fmt/errors"
	"k8s.io/apimachinery/pkg/api/resource"
)

type DeployYamlV2 struct {
	Version    string                       `yaml:"version"`
	Services   map[string]Service           `yaml:"services"`
	Profiles   Profiles                     `yaml:"profiles"`
	Deployment map[string]map[string]Target `yaml:"deployment"`
}

func (dy *DeployYamlV2) checkRequired() error {
	if len(dy.Services) <= 0 {
		return errors.New("at least one service must be defined")
	}
	if len(dy.Deployment) <= 0 {
		return errors.New("at least one deployment must be defined")
	}
	for name, placements := range dy.Deployment {
		if _, ok := dy.Services[name]; !ok {
			return errors.Newf("deployment %s refers to an undefined service", name)
		}
		for placement, target := range placements {
			if _, ok := dy.Profiles.Placement[placement]; !ok {
				return errors.Newf("deployment %s refers to undefined placement %s", name, placement)
			}
			if _, ok := dy.Profiles.Compute[target.Profile]; !ok {
				return errors.Newf("deployment %s refers to undefined compute profile %s", name, target.Profile)
			}
			if _, ok := dy.Profiles.Placement[placement].Pricing[target.Profile]; !ok {
				return errors.Newf("placement %s has no price for profile %s", placement, target.Profile)
			}
		}
	}
	return nil
}

type Service struct {
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	Expose  []Expose `yaml:"expose"`
}

type Expose struct {
	Port   uint32   `yaml:"port"`
	As     uint32   `yaml:"as"`
	Proto  string   `yaml:"proto"`
	Accept []string `yaml:"accept"`
	To     []struct {
		Service string `yaml:"service"`
		Global  bool   `yaml:"global"`
	} `yaml:"to"`
}

func (e Expose) externalPort() uint32 {
	if e.As != 0 {
		return e.As
	}
	return e.Port
}

func (e Expose) global() bool {
	for _, to := range e.To {
		if to.Global {
			return true
		}
	}
	return false
}

type Profiles struct {
	Compute   map[string]Compute   `yaml:"compute"`
	Placement map[string]Placement `yaml:"placement"`
}

type Compute struct {
	Resources struct {
		Cpu struct {
			Units Quantity `yaml:"units"`
		} `yaml:"cpu"`
		Memory struct {
			Size Quantity `yaml:"size"`
		} `yaml:"memory"`
		Storage StorageList `yaml:"storage"`
		Gpu     struct {
			Units Quantity `yaml:"units"`
		} `yaml:"gpu"`
	} `yaml:"resources"`
}

type Placement struct {
	Attributes map[string]string `yaml:"attributes"`
	SignedBy   struct {
		AnyOf []string `yaml:"anyOf"`
		AllOf []string `yaml:"allOf"`
	} `yaml:"signedBy"`
	Pricing map[string]Price `yaml:"pricing"`
}

type Price struct {
	Denom  string   `yaml:"denom"`
	Amount Quantity `yaml:"amount"`
}

type Target struct {
	Profile string `yaml:"profile"`
	Count   uint32 `yaml:"count"`
}

// Quantity keeps a scalar as written, SDL files mix numbers and suffixed
// strings for the same fields.
type Quantity string

func (q *Quantity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*q = ""
	case string:
		*q = Quantity(strings.TrimSpace(v))
	case int:
		*q = Quantity(strconv.Itoa(v))
	case float64:
		*q = Quantity(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("unsupported quantity %v", raw)
	}
	return nil
}

type StorageVolume struct {
	Name string   `yaml:"name"`
	Size Quantity `yaml:"size"`
}

// StorageList accepts a single volume or a list of volumes.
type StorageList []StorageVolume

func (s *StorageList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []StorageVolume
	if err := unmarshal(&list); err == nil {
		*s = list
		return nil
	}
	var single StorageVolume
	if err := unmarshal(&single); err != nil {
		return err
	}
	*s = StorageList{single}
	return nil
}

// cpuMillis converts cpu units such as 0.5, "1" or "250m" to millicores.
func cpuMillis(units Quantity) (uint64, error) {
	if units == "" {
		return 0, errors.New("cpu units are required")
	}
	q, err := resource.ParseQuantity(string(units))
	if err != nil {
		return 0, fmt.Errorf("invalid cpu units %s, %w", units, err)
	}
	if q.MilliValue() <= 0 {
		return 0, fmt.Errorf("cpu units %s must be positive", units)
	}
	return uint64(q.MilliValue()), nil
}

// byteSize converts sizes such as "512Mi" or "1GB" to bytes.
func byteSize(size Quantity) (uint64, error) {
	if size == "" {
		return 0, errors.New("size is required")
	}
	s := strings.TrimSuffix(strings.TrimSpace(string(size)), "B")
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %s, %w", size, err)
	}
	if q.Value() <= 0 {
		return 0, fmt.Errorf("size %s must be positive", size)
	}
	return uint64(q.Value()), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
