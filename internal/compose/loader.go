package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// manifestNames are the file names searched for, in order of preference.
var manifestNames = []string{
	"lift.yml", "lift.yaml",
	"compose.yml", "compose.yaml",
	"docker-compose.yml", "docker-compose.yaml",
}

// FindManifest walks upward from dir looking for a manifest file and returns
// the first hit.
func FindManifest(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range manifestNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no manifest file found in %q or any parent directory", dir)
		}
		dir = parent
	}
}

// LoadOptions control manifest resolution.
type LoadOptions struct {
	// File is the manifest path. Required.
	File string
	// ProjectName overrides the top-level name and the directory-derived
	// default.
	ProjectName string
	// Environ is the process environment as KEY=VAL pairs. Defaults to
	// os.Environ() when nil.
	Environ []string
}

// file is the raw decoded manifest before normalization.
type file struct {
	Name     string                    `yaml:"name"`
	Services map[string]*Service       `yaml:"services"`
	Volumes  map[string]*VolumeConfig  `yaml:"volumes"`
	Networks map[string]*NetworkConfig `yaml:"networks"`
}

// Load reads, interpolates, decodes, normalizes and validates a manifest.
func Load(opts LoadOptions) (*Project, error) {
	path, err := filepath.Abs(opts.File)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	workingDir := filepath.Dir(path)

	env, err := interpolationEnv(workingDir, opts.Environ)
	if err != nil {
		return nil, err
	}

	interpolated, warnings, err := Interpolate(string(raw), MapLookup(env))
	if err != nil {
		return nil, fmt.Errorf("failed to interpolate %s: %w", filepath.Base(path), err)
	}
	for _, w := range warnings {
		logrus.Warn(w)
	}

	var f file
	if err := yaml.Unmarshal([]byte(interpolated), &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	p := &Project{
		Name:       projectName(opts.ProjectName, f.Name, workingDir),
		WorkingDir: workingDir,
		File:       path,
		Services:   f.Services,
		Volumes:    f.Volumes,
		Networks:   f.Networks,
		Warnings:   warnings,
	}
	if p.Services == nil {
		p.Services = map[string]*Service{}
	}
	if p.Volumes == nil {
		p.Volumes = map[string]*VolumeConfig{}
	}
	if p.Networks == nil {
		p.Networks = map[string]*NetworkConfig{}
	}

	// A bare `volname:` key decodes to a nil pointer and means all
	// defaults.
	for key, vol := range p.Volumes {
		if vol == nil {
			p.Volumes[key] = &VolumeConfig{}
		}
	}
	for key, net := range p.Networks {
		if net == nil {
			p.Networks[key] = &NetworkConfig{}
		}
	}
	for name, svc := range p.Services {
		if svc == nil {
			svc = &Service{}
			p.Services[name] = svc
		}
		svc.Name = name
		if err := resolveServiceEnv(svc, workingDir, env); err != nil {
			return nil, err
		}
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// interpolationEnv builds the variable environment: process environment over
// the project .env file, process winning.
func interpolationEnv(workingDir string, environ []string) (map[string]string, error) {
	env := map[string]string{}
	dotenvPath := filepath.Join(workingDir, ".env")
	if _, err := os.Stat(dotenvPath); err == nil {
		fromFile, err := godotenv.Read(dotenvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
		for k, v := range fromFile {
			env[k] = v
		}
	}
	if environ == nil {
		environ = os.Environ()
	}
	for _, entry := range environ {
		if key, val, found := strings.Cut(entry, "="); found {
			env[key] = val
		}
	}
	return env, nil
}

// resolveServiceEnv computes the effective container environment: env_file
// entries first, explicit environment entries on top, bare keys filled from
// the interpolation environment. Missing host variables become empty strings.
func resolveServiceEnv(svc *Service, workingDir string, hostEnv map[string]string) error {
	resolved := map[string]string{}
	for _, ef := range svc.EnvFile {
		path := ef
		if !filepath.IsAbs(path) {
			path = filepath.Join(workingDir, path)
		}
		fromFile, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("service %s: failed to read env_file %s: %w", svc.Name, ef, err)
		}
		for k, v := range fromFile {
			resolved[k] = v
		}
	}
	for key, val := range svc.Environment {
		if val != nil {
			resolved[key] = *val
			continue
		}
		resolved[key] = hostEnv[key]
	}
	svc.Env = resolved
	return nil
}

// projectName applies the override chain: explicit flag, top-level name,
// sanitized directory name.
func projectName(override, declared, workingDir string) string {
	switch {
	case override != "":
		return sanitizeProjectName(override)
	case declared != "":
		return sanitizeProjectName(declared)
	default:
		return sanitizeProjectName(filepath.Base(workingDir))
	}
}

// sanitizeProjectName lowercases the name and squeezes anything outside
// [a-z0-9_-] to a hyphen.
func sanitizeProjectName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + 32
		default:
			return '-'
		}
	}, name)
	sanitized = strings.Trim(sanitized, "-_")
	if sanitized == "" {
		sanitized = "default"
	}
	return sanitized
}
