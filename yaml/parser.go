package yaml

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Parser interface {
	Parse(yamlFile []byte) error
	Workload() (*Workload, error)
}

type ParserYamlV2 struct {
	config DeployYamlV2
}

func (p *ParserYamlV2) Parse(yamlFile []byte) error {
	var deploy DeployYamlV2
	if err := yaml.Unmarshal(yamlFile, &deploy); err != nil {
		return err
	}
	p.config = deploy
	return nil
}

func (p *ParserYamlV2) Workload() (*Workload, error) {
	if err := p.config.checkRequired(); err != nil {
		return nil, err
	}
	return p.config.toWorkload()
}

type Version struct {
	Version string `yaml:"version"`
}

func getYAMLFileVersion(yamlFile []byte) (string, error) {
	var version Version
	err := yaml.Unmarshal(yamlFile, &version)
	if err != nil {
		return "", err
	}
	return version.Version, nil
}

// ParseSDL turns an SDL document into the deployment groups and manifest
// of a workload.
func ParseSDL(yamlFile []byte) (*Workload, error) {
	version, err := getYAMLFileVersion(yamlFile)
	if err != nil {
		return nil, fmt.Errorf("failed unable to read sdl version, %w", err)
	}

	var parser Parser
	switch version {
	case "2.0":
		parser = &ParserYamlV2{}
	default:
		return nil, fmt.Errorf("not support sdl version: %q", version)
	}

	if err = parser.Parse(yamlFile); err != nil {
		return nil, fmt.Errorf("failed unable to parse sdl, %w", err)
	}
	workload, err := parser.Workload()
	if err != nil {
		return nil, fmt.Errorf("failed invalid sdl, %w", err)
	}
	return workload, nil
}

func LoadSDL(path string) (*Workload, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed unable to read file, %w", err)
	}
	return ParseSDL(yamlFile)
}
