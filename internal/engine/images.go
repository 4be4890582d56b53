package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/sirupsen/logrus"

	"lift/internal/compose"
)

// ensureImages makes the image of every service available, walking services
// in startup order: build contexts are built, plain images pulled. Nothing is
// done for images already present unless the options force it.
func (e *Engine) ensureImages(ctx context.Context, p *compose.Project, order []string, opts UpOptions) error {
	for _, name := range order {
		svc := p.Services[name]
		tag := imageTag(p, name)
		switch {
		case svc.Build != nil:
			present, err := e.imageExists(ctx, tag)
			if err != nil {
				return err
			}
			if opts.Build || !present {
				if err := e.BuildImage(ctx, p, name); err != nil {
					return err
				}
			}
		default:
			present, err := e.imageExists(ctx, tag)
			if err != nil {
				return err
			}
			if opts.Pull || !present {
				if err := e.PullImage(ctx, tag); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Pull pulls the image of every service that declares one.
func (e *Engine) Pull(ctx context.Context, p *compose.Project) error {
	for _, name := range p.ServiceNames() {
		if p.Services[name].Image == "" {
			continue
		}
		if err := e.PullImage(ctx, p.Services[name].Image); err != nil {
			return err
		}
	}
	return nil
}

// Build builds the image of every service that declares a build context.
func (e *Engine) Build(ctx context.Context, p *compose.Project) error {
	for _, name := range p.ServiceNames() {
		if p.Services[name].Build == nil {
			continue
		}
		if err := e.BuildImage(ctx, p, name); err != nil {
			return err
		}
	}
	return nil
}

// PullImage pulls one image, draining the progress stream and surfacing any
// error it carries.
func (e *Engine) PullImage(ctx context.Context, ref string) error {
	logrus.Infof("Pulling image %s", ref)
	reader, err := e.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(reader, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// BuildImage tars the service's build context (honoring .dockerignore) and
// builds it through the engine's build endpoint.
func (e *Engine) BuildImage(ctx context.Context, p *compose.Project, name string) error {
	svc := p.Services[name]
	contextDir := svc.Build.Context
	if contextDir == "" {
		contextDir = "."
	}
	if !filepath.IsAbs(contextDir) {
		contextDir = filepath.Join(p.WorkingDir, contextDir)
	}

	excludes, err := readDockerignore(contextDir)
	if err != nil {
		return err
	}
	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{ExcludePatterns: excludes})
	if err != nil {
		return fmt.Errorf("failed to tar build context %s: %w", contextDir, err)
	}
	defer buildCtx.Close()

	buildArgs := map[string]*string{}
	for k, v := range svc.Build.Args {
		buildArgs[k] = v
	}

	tag := imageTag(p, name)
	logrus.Infof("Building image %s from %s", tag, contextDir)
	resp, err := e.api.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: svc.Build.Dockerfile,
		BuildArgs:  buildArgs,
		Remove:     true,
		Labels: map[string]string{
			LabelManaged: "true",
			LabelProject: p.Name,
			LabelService: name,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build image for service %s: %w", name, err)
	}
	defer resp.Body.Close()
	out := io.Discard
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		out = os.Stderr
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return fmt.Errorf("failed to build image for service %s: %w", name, err)
	}
	return nil
}

func (e *Engine) imageExists(ctx context.Context, ref string) (bool, error) {
	list, err := e.api.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}
	return len(list) > 0, nil
}

// readDockerignore loads exclusion patterns from the context's .dockerignore
// file, if any.
func readDockerignore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	return patterns, nil
}
