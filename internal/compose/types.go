package compose

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project is a fully resolved manifest: interpolated, normalized and
// validated. It is read once at load time and never mutated afterwards.
type Project struct {
	Name       string
	WorkingDir string
	File       string

	Services map[string]*Service
	Volumes  map[string]*VolumeConfig
	Networks map[string]*NetworkConfig

	// Warnings collected while loading, e.g. unset variables that
	// interpolated to an empty string.
	Warnings []string
}

// ServiceNames returns the service names in lexicographic order.
func (p *Project) ServiceNames() []string {
	names := make([]string, 0, len(p.Services))
	for name := range p.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultNetworkName is the engine-side name of the project network every
// service joins unless it declares networks of its own.
func (p *Project) DefaultNetworkName() string {
	return p.Name + "_default"
}

// VolumeObjectName resolves a top-level volume key to the name of the engine
// volume object backing it.
func (p *Project) VolumeObjectName(key string) string {
	vol, ok := p.Volumes[key]
	if ok && vol != nil {
		if vol.Name != "" {
			return vol.Name
		}
		if vol.External {
			return key
		}
	}
	return p.Name + "_" + key
}

// NetworkObjectName resolves a top-level network key to the engine network
// name.
func (p *Project) NetworkObjectName(key string) string {
	net, ok := p.Networks[key]
	if ok && net != nil {
		if net.Name != "" {
			return net.Name
		}
		if net.External {
			return key
		}
	}
	return p.Name + "_" + key
}

// Service is one deployable unit of the manifest. The declaration fields
// mirror the compose short syntax; Env holds the fully resolved environment
// (env_file merged, bare keys filled from the host) computed at load time.
type Service struct {
	Name string `yaml:"-"`

	Image           string       `yaml:"image"`
	Build           *BuildConfig `yaml:"build"`
	ContainerName   string       `yaml:"container_name"`
	Hostname        string       `yaml:"hostname"`
	User            string       `yaml:"user"`
	WorkingDir      string       `yaml:"working_dir"`
	Privileged      bool         `yaml:"privileged"`
	Command         ShellCommand `yaml:"command"`
	Entrypoint      ShellCommand `yaml:"entrypoint"`
	Environment     Environment  `yaml:"environment"`
	EnvFile         StringList   `yaml:"env_file"`
	Ports           PortList     `yaml:"ports"`
	Volumes         []string     `yaml:"volumes"`
	Networks        StringList   `yaml:"networks"`
	DependsOn       DependsOn    `yaml:"depends_on"`
	Restart         string       `yaml:"restart"`
	Labels          Labels       `yaml:"labels"`
	StopGracePeriod string       `yaml:"stop_grace_period"`

	Env map[string]string `yaml:"-"`
}

// Dependencies returns the names of the services this service depends on,
// sorted.
func (s *Service) Dependencies() []string {
	deps := make([]string, 0, len(s.DependsOn))
	for name := range s.DependsOn {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	return deps
}

// VolumeConfig is a top-level volume declaration. A bare `volname:` key with
// a null body is valid and means all defaults.
type VolumeConfig struct {
	Name       string            `yaml:"name"`
	Driver     string            `yaml:"driver"`
	DriverOpts map[string]string `yaml:"driver_opts"`
	External   bool              `yaml:"external"`
	Labels     Labels            `yaml:"labels"`
}

// NetworkConfig is a top-level network declaration.
type NetworkConfig struct {
	Name     string `yaml:"name"`
	Driver   string `yaml:"driver"`
	External bool   `yaml:"external"`
	Labels   Labels `yaml:"labels"`
}

// BuildConfig accepts either a bare context string or the long form.
type BuildConfig struct {
	Context    string      `yaml:"context"`
	Dockerfile string      `yaml:"dockerfile"`
	Args       Environment `yaml:"args"`
}

func (b *BuildConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.Context = node.Value
		return nil
	}
	type plain BuildConfig
	return node.Decode((*plain)(b))
}

// ShellCommand accepts either a list of arguments or a single string that is
// split on whitespace, honoring single and double quotes.
type ShellCommand []string

func (c *ShellCommand) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		fields, err := splitCommand(node.Value)
		if err != nil {
			return err
		}
		*c = fields
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*c = list
	return nil
}

func splitCommand(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	var quote rune
	inField := false
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inField = true
		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command %q", s)
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// StringList accepts a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = []string{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

// PortList accepts a list of port specs; bare numeric entries are kept as
// their literal text.
type PortList []string

func (l *PortList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("ports must be a list")
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("invalid port entry on line %d", item.Line)
		}
		out = append(out, item.Value)
	}
	*l = out
	return nil
}

// Environment accepts either a map (null values mean pass-through from the
// host environment) or a list of KEY=VAL / bare KEY entries.
type Environment map[string]*string

func (e *Environment) UnmarshalYAML(node *yaml.Node) error {
	out := Environment{}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i < len(node.Content)-1; i += 2 {
			key := node.Content[i]
			val := node.Content[i+1]
			if val.Tag == "!!null" {
				out[key.Value] = nil
				continue
			}
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("environment value for %q must be a scalar", key.Value)
			}
			v := val.Value
			out[key.Value] = &v
		}
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		for _, entry := range list {
			key, val, found := strings.Cut(entry, "=")
			if found {
				v := val
				out[key] = &v
			} else {
				out[key] = nil
			}
		}
	default:
		return fmt.Errorf("environment must be a map or a list")
	}
	*e = out
	return nil
}

// Labels accepts a map or a list of KEY=VAL entries.
type Labels map[string]string

func (l *Labels) UnmarshalYAML(node *yaml.Node) error {
	out := Labels{}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i < len(node.Content)-1; i += 2 {
			key := node.Content[i]
			val := node.Content[i+1]
			if val.Kind != yaml.ScalarNode && val.Tag != "!!null" {
				return fmt.Errorf("label value for %q must be a scalar", key.Value)
			}
			out[key.Value] = val.Value
		}
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		for _, entry := range list {
			key, val, _ := strings.Cut(entry, "=")
			out[key] = val
		}
	default:
		return fmt.Errorf("labels must be a map or a list")
	}
	*l = out
	return nil
}

// DependsOn accepts a list of service names or the long map form with a
// condition. Conditions are accepted syntactically but honored as start
// ordering only.
type DependsOn map[string]DependsOnConfig

// DependsOnConfig is the long-form body of a depends_on entry.
type DependsOnConfig struct {
	Condition string `yaml:"condition"`
}

func (d *DependsOn) UnmarshalYAML(node *yaml.Node) error {
	out := DependsOn{}
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		for _, name := range list {
			out[name] = DependsOnConfig{Condition: "service_started"}
		}
	case yaml.MappingNode:
		var m map[string]*DependsOnConfig
		if err := node.Decode(&m); err != nil {
			return err
		}
		for name, cfg := range m {
			if cfg == nil {
				cfg = &DependsOnConfig{}
			}
			if cfg.Condition == "" {
				cfg.Condition = "service_started"
			}
			out[name] = *cfg
		}
	default:
		return fmt.Errorf("depends_on must be a list or a map")
	}
	*d = out
	return nil
}
