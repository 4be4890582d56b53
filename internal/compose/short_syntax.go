package compose

import (
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
)

// PortMapping is one parsed short-syntax port entry.
type PortMapping struct {
	HostIP        string
	HostPort      string
	ContainerPort nat.Port
}

// ParsePortSpec parses a short-syntax port entry ("8501:8501",
// "127.0.0.1:80:8080/tcp", bare "6379") into its mappings. A bare container
// port exposes without publishing.
func ParsePortSpec(spec string) ([]PortMapping, error) {
	parsed, err := nat.ParsePortSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid port spec %q: %w", spec, err)
	}
	out := make([]PortMapping, 0, len(parsed))
	for _, pm := range parsed {
		out = append(out, PortMapping{
			HostIP:        pm.Binding.HostIP,
			HostPort:      pm.Binding.HostPort,
			ContainerPort: pm.Port,
		})
	}
	return out, nil
}

// VolumeSpec is one parsed short-syntax volume entry.
type VolumeSpec struct {
	Source   string
	Target   string
	ReadOnly bool
	// Named is true when Source refers to a top-level named volume rather
	// than a host path.
	Named bool
}

// ParseVolumeSpec parses a short-syntax volume entry: "volname:/data",
// "./src:/app:ro", "/abs:/mnt", or a bare container path for an anonymous
// volume.
func ParseVolumeSpec(spec string) (VolumeSpec, error) {
	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return VolumeSpec{}, fmt.Errorf("invalid volume spec %q", spec)
		}
		return VolumeSpec{Target: parts[0]}, nil
	case 2, 3:
		vs := VolumeSpec{Source: parts[0], Target: parts[1]}
		if vs.Source == "" || vs.Target == "" {
			return VolumeSpec{}, fmt.Errorf("invalid volume spec %q", spec)
		}
		if len(parts) == 3 {
			switch parts[2] {
			case "ro":
				vs.ReadOnly = true
			case "rw", "":
			default:
				return VolumeSpec{}, fmt.Errorf("invalid volume mode %q in %q", parts[2], spec)
			}
		}
		vs.Named = !isHostPath(vs.Source)
		return vs, nil
	default:
		return VolumeSpec{}, fmt.Errorf("invalid volume spec %q", spec)
	}
}

func isHostPath(source string) bool {
	return strings.HasPrefix(source, "/") ||
		strings.HasPrefix(source, "./") ||
		strings.HasPrefix(source, "../") ||
		strings.HasPrefix(source, "~")
}
