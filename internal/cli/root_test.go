package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lift/internal/compose"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()

	want := []string{"up", "down", "ps", "config", "logs", "pull", "build", "dns", "serve", "version"}
	got := map[string]bool{}
	for _, cmd := range root.Commands() {
		got[cmd.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing command %q", name)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("file"))
	assert.NotNil(t, root.PersistentFlags().Lookup("project-name"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, root.PersistentFlags().Lookup("no-color"))
}

func TestRenderProject(t *testing.T) {
	p := &compose.Project{
		Name: "demo",
		Services: map[string]*compose.Service{
			"redis": {
				Name:    "redis",
				Image:   "redis:7-alpine",
				Ports:   compose.PortList{"6379:6379"},
				Volumes: []string{"redis_data:/data"},
			},
		},
		Volumes:  map[string]*compose.VolumeConfig{"redis_data": {}},
		Networks: map[string]*compose.NetworkConfig{},
	}

	rendered, err := renderProject(p)
	require.NoError(t, err)

	assert.Equal(t, "demo", rendered["name"])
	services, ok := rendered["services"].(map[string]any)
	require.True(t, ok)
	redis, ok := services["redis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "redis:7-alpine", redis["image"])
	assert.Equal(t, []string{"6379:6379"}, redis["ports"])

	volumes, ok := rendered["volumes"].(map[string]any)
	require.True(t, ok)
	vol, ok := volumes["redis_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "demo_redis_data", vol["name"])
}
