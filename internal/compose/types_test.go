package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildConfigForms(t *testing.T) {
	var short struct {
		Build *BuildConfig `yaml:"build"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("build: ./app\n"), &short))
	assert.Equal(t, "./app", short.Build.Context)

	var long struct {
		Build *BuildConfig `yaml:"build"`
	}
	data := "build:\n  context: ./app\n  dockerfile: Dockerfile.dev\n  args:\n    VERSION: \"2\"\n"
	require.NoError(t, yaml.Unmarshal([]byte(data), &long))
	assert.Equal(t, "./app", long.Build.Context)
	assert.Equal(t, "Dockerfile.dev", long.Build.Dockerfile)
	require.Contains(t, long.Build.Args, "VERSION")
	assert.Equal(t, "2", *long.Build.Args["VERSION"])
}

func TestShellCommandForms(t *testing.T) {
	var fromList ShellCommand
	require.NoError(t, yaml.Unmarshal([]byte("[redis-server, --appendonly, \"yes\"]"), &fromList))
	assert.Equal(t, ShellCommand{"redis-server", "--appendonly", "yes"}, fromList)

	var fromString ShellCommand
	require.NoError(t, yaml.Unmarshal([]byte(`"redis-server --appendonly yes"`), &fromString))
	assert.Equal(t, ShellCommand{"redis-server", "--appendonly", "yes"}, fromString)

	var quoted ShellCommand
	require.NoError(t, yaml.Unmarshal([]byte(`"sh -c 'echo hello world'"`), &quoted))
	assert.Equal(t, ShellCommand{"sh", "-c", "echo hello world"}, quoted)

	var unterminated ShellCommand
	require.Error(t, yaml.Unmarshal([]byte(`"sh -c 'oops"`), &unterminated))
}

func TestEnvironmentForms(t *testing.T) {
	var fromMap Environment
	require.NoError(t, yaml.Unmarshal([]byte("KEY: value\nPORT: 6379\nPASS:\n"), &fromMap))
	require.Contains(t, fromMap, "KEY")
	assert.Equal(t, "value", *fromMap["KEY"])
	assert.Equal(t, "6379", *fromMap["PORT"])
	assert.Nil(t, fromMap["PASS"])

	var fromList Environment
	require.NoError(t, yaml.Unmarshal([]byte("- KEY=value\n- BARE\n"), &fromList))
	assert.Equal(t, "value", *fromList["KEY"])
	assert.Nil(t, fromList["BARE"])
}

func TestLabelsForms(t *testing.T) {
	var fromMap Labels
	require.NoError(t, yaml.Unmarshal([]byte("com.example.team: infra\n"), &fromMap))
	assert.Equal(t, "infra", fromMap["com.example.team"])

	var fromList Labels
	require.NoError(t, yaml.Unmarshal([]byte("- com.example.team=infra\n"), &fromList))
	assert.Equal(t, "infra", fromList["com.example.team"])
}

func TestDependsOnForms(t *testing.T) {
	var short DependsOn
	require.NoError(t, yaml.Unmarshal([]byte("- redis\n- db\n"), &short))
	assert.Equal(t, "service_started", short["redis"].Condition)
	assert.Len(t, short, 2)

	var long DependsOn
	data := "redis:\n  condition: service_healthy\ndb:\n"
	require.NoError(t, yaml.Unmarshal([]byte(data), &long))
	assert.Equal(t, "service_healthy", long["redis"].Condition)
	assert.Equal(t, "service_started", long["db"].Condition)
}

func TestPortListAcceptsBareNumbers(t *testing.T) {
	var ports PortList
	require.NoError(t, yaml.Unmarshal([]byte("- \"8501:8501\"\n- 6379\n"), &ports))
	assert.Equal(t, PortList{"8501:8501", "6379"}, ports)
}

func TestStringListForms(t *testing.T) {
	var single StringList
	require.NoError(t, yaml.Unmarshal([]byte(`"one.env"`), &single))
	assert.Equal(t, StringList{"one.env"}, single)

	var many StringList
	require.NoError(t, yaml.Unmarshal([]byte("- one.env\n- two.env\n"), &many))
	assert.Equal(t, StringList{"one.env", "two.env"}, many)
}

func TestParsePortSpec(t *testing.T) {
	mappings, err := ParsePortSpec("8501:8501")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "8501", mappings[0].HostPort)
	assert.Equal(t, "8501/tcp", string(mappings[0].ContainerPort))

	mappings, err = ParsePortSpec("127.0.0.1:80:8080/tcp")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "127.0.0.1", mappings[0].HostIP)
	assert.Equal(t, "80", mappings[0].HostPort)

	mappings, err = ParsePortSpec("6379")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "", mappings[0].HostPort)

	_, err = ParsePortSpec("nope")
	require.Error(t, err)
}

func TestParseVolumeSpec(t *testing.T) {
	vs, err := ParseVolumeSpec("redis_data:/data")
	require.NoError(t, err)
	assert.True(t, vs.Named)
	assert.Equal(t, "redis_data", vs.Source)
	assert.Equal(t, "/data", vs.Target)
	assert.False(t, vs.ReadOnly)

	vs, err = ParseVolumeSpec("./src:/app:ro")
	require.NoError(t, err)
	assert.False(t, vs.Named)
	assert.True(t, vs.ReadOnly)

	vs, err = ParseVolumeSpec("/var/log")
	require.NoError(t, err)
	assert.Equal(t, "", vs.Source)
	assert.Equal(t, "/var/log", vs.Target)

	_, err = ParseVolumeSpec("a:b:c:d")
	require.Error(t, err)

	_, err = ParseVolumeSpec("x:/data:rwx")
	require.Error(t, err)
}
