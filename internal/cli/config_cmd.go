package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lift/internal/compose"
	"lift/internal/engine"
)

func newConfigCmd(o *options) *cobra.Command {
	var listServices, listVolumes, showHashes bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Render the resolved manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := o.loadProject()
			if err != nil {
				return err
			}

			switch {
			case listServices:
				for _, name := range project.ServiceNames() {
					fmt.Println(name)
				}
				return nil
			case listVolumes:
				keys := make([]string, 0, len(project.Volumes))
				for key := range project.Volumes {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Println(key)
				}
				return nil
			case showHashes:
				for _, name := range project.ServiceNames() {
					hash, err := engine.ConfigHash(project, name)
					if err != nil {
						return err
					}
					fmt.Printf("%s %s\n", name, hash)
				}
				return nil
			}

			rendered, err := renderProject(project)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(rendered)
		},
	}

	cmd.Flags().BoolVar(&listServices, "services", false, "list service names only")
	cmd.Flags().BoolVar(&listVolumes, "volumes", false, "list volume names only")
	cmd.Flags().BoolVar(&showHashes, "hash", false, "print per-service config hashes")
	return cmd
}

// renderProject converts the resolved model back into manifest-shaped YAML.
func renderProject(p *compose.Project) (map[string]any, error) {
	services := map[string]any{}
	for _, name := range p.ServiceNames() {
		svc := p.Services[name]
		rendered := map[string]any{}
		if svc.Image != "" {
			rendered["image"] = svc.Image
		}
		if svc.Build != nil {
			build := map[string]any{"context": svc.Build.Context}
			if svc.Build.Dockerfile != "" {
				build["dockerfile"] = svc.Build.Dockerfile
			}
			rendered["build"] = build
		}
		if svc.ContainerName != "" {
			rendered["container_name"] = svc.ContainerName
		}
		if len(svc.Command) > 0 {
			rendered["command"] = []string(svc.Command)
		}
		if len(svc.Entrypoint) > 0 {
			rendered["entrypoint"] = []string(svc.Entrypoint)
		}
		if len(svc.Env) > 0 {
			rendered["environment"] = svc.Env
		}
		if len(svc.Ports) > 0 {
			rendered["ports"] = []string(svc.Ports)
		}
		if len(svc.Volumes) > 0 {
			rendered["volumes"] = svc.Volumes
		}
		if deps := svc.Dependencies(); len(deps) > 0 {
			rendered["depends_on"] = deps
		}
		if svc.Restart != "" {
			rendered["restart"] = svc.Restart
		}
		if len(svc.Labels) > 0 {
			rendered["labels"] = map[string]string(svc.Labels)
		}
		services[name] = rendered
	}

	out := map[string]any{
		"name":     p.Name,
		"services": services,
	}
	if len(p.Volumes) > 0 {
		volumes := map[string]any{}
		for key, cfg := range p.Volumes {
			rendered := map[string]any{"name": p.VolumeObjectName(key)}
			if cfg.Driver != "" {
				rendered["driver"] = cfg.Driver
			}
			if cfg.External {
				rendered["external"] = true
			}
			volumes[key] = rendered
		}
		out["volumes"] = volumes
	}
	if len(p.Networks) > 0 {
		networks := map[string]any{}
		for key, cfg := range p.Networks {
			rendered := map[string]any{"name": p.NetworkObjectName(key)}
			if cfg.Driver != "" {
				rendered["driver"] = cfg.Driver
			}
			if cfg.External {
				rendered["external"] = true
			}
			networks[key] = rendered
		}
		out["networks"] = networks
	}
	return out, nil
}
