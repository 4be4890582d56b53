package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/fatih/color"

	"lift/internal/compose"
)

// LogsOptions control log streaming.
type LogsOptions struct {
	Follow     bool
	Timestamps bool
	// Tail limits output to the last N lines per container; empty means
	// everything.
	Tail string
}

var prefixColors = []color.Attribute{
	color.FgCyan, color.FgYellow, color.FgGreen,
	color.FgMagenta, color.FgBlue, color.FgRed,
}

// Logs streams the logs of the selected services (all when none are named)
// to out, each line prefixed with its colored service name. stdout and
// stderr are demultiplexed from the engine's log stream.
func (e *Engine) Logs(ctx context.Context, p *compose.Project, services []string, opts LogsOptions, out io.Writer) error {
	if len(services) == 0 {
		services = p.ServiceNames()
	}

	width := 0
	for _, name := range services {
		if len(name) > width {
			width = len(name)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make([]error, 0)

	for i, name := range services {
		if _, ok := p.Services[name]; !ok {
			return fmt.Errorf("no such service: %s", name)
		}
		c, err := e.findServiceContainer(ctx, p.Name, name)
		if err != nil {
			return err
		}
		if c == nil {
			continue
		}

		reader, err := e.api.ContainerLogs(ctx, c.ID, container.LogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Follow:     opts.Follow,
			Timestamps: opts.Timestamps,
			Tail:       opts.Tail,
		})
		if err != nil {
			return fmt.Errorf("failed to read logs for service %s: %w", name, err)
		}

		prefix := color.New(prefixColors[i%len(prefixColors)]).Sprintf("%-*s | ", width, name)
		wg.Add(1)
		go func(name string, reader io.ReadCloser) {
			defer wg.Done()
			defer reader.Close()
			w := &prefixWriter{out: out, prefix: prefix, mu: &mu}
			if _, err := stdcopy.StdCopy(w, w, reader); err != nil && err != io.EOF {
				mu.Lock()
				errs = append(errs, fmt.Errorf("log stream for service %s: %w", name, err))
				mu.Unlock()
			}
			w.Flush()
		}(name, reader)
	}

	wg.Wait()
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// prefixWriter writes each line with a fixed prefix. Partial lines are held
// back until their newline arrives.
type prefixWriter struct {
	out    io.Writer
	prefix string
	mu     *sync.Mutex
	buf    bytes.Buffer
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Not a full line yet; put it back.
			w.buf.WriteString(line)
			break
		}
		w.mu.Lock()
		fmt.Fprintf(w.out, "%s%s", w.prefix, line)
		w.mu.Unlock()
	}
	return len(p), nil
}

// Flush writes any trailing output that did not end in a newline.
func (w *prefixWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	w.mu.Lock()
	fmt.Fprintf(w.out, "%s%s\n", w.prefix, w.buf.String())
	w.mu.Unlock()
	w.buf.Reset()
}
