package engine

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixWriter(t *testing.T) {
	var out bytes.Buffer
	var mu sync.Mutex
	w := &prefixWriter{out: &out, prefix: "redis | ", mu: &mu}

	w.Write([]byte("first line\nsecond "))
	w.Write([]byte("line\ntrailing"))
	w.Flush()

	assert.Equal(t, "redis | first line\nredis | second line\nredis | trailing\n", out.String())
}

func TestLogsDemultiplexesAndPrefixes(t *testing.T) {
	fake := newFakeAPI()
	eng := NewWithClient(fake)
	p := referenceProject(t)
	require.NoError(t, eng.Up(context.Background(), p, UpOptions{}))

	redis := fake.serviceContainer("redis")
	var framed bytes.Buffer
	stdout := stdcopy.NewStdWriter(&framed, stdcopy.Stdout)
	stderr := stdcopy.NewStdWriter(&framed, stdcopy.Stderr)
	stdout.Write([]byte("ready to accept connections\n"))
	stderr.Write([]byte("warning: no config file\n"))
	fake.logStreams[redis.id] = framed.Bytes()

	var out bytes.Buffer
	err := eng.Logs(context.Background(), p, []string{"redis"}, LogsOptions{}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, "redis")
		assert.Contains(t, line, "| ")
	}
	assert.Contains(t, out.String(), "ready to accept connections")
	assert.Contains(t, out.String(), "warning: no config file")
}

func TestLogsUnknownService(t *testing.T) {
	fake := newFakeAPI()
	eng := NewWithClient(fake)
	p := referenceProject(t)

	err := eng.Logs(context.Background(), p, []string{"ghost"}, LogsOptions{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such service")
}
