// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a local container runtime and runs one-shot
// conversion images with stdin and stdout piped.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrNoRuntime is returned by DetectRuntime when no known runtime answers.
var ErrNoRuntime = errors.New("no container runtime available")

// Runtime runs conversion images on a local container engine.
type Runtime interface {
	// Name returns the runtime binary ("docker" or "podman").
	Name() string

	// ImageExists returns nil when the named image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes image once with stdin and stdout piped. The container
	// has no network access; medical documents never leave the host.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// commander is the process seam; tests replace it.
type commander interface {
	LookPath(file string) (string, error)
	Exec(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osCommander struct{}

func (osCommander) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osCommander) Exec(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine describes one supported runtime binary.
type engine struct {
	bin     string
	inspect []string // subcommand that fails when an image is missing
}

// engines lists the supported runtimes in detection order.
var engines = []engine{
	{bin: "docker", inspect: []string{"image", "inspect"}},
	{bin: "podman", inspect: []string{"image", "exists"}},
}

// maxStderr caps the container stderr quoted in errors.
const maxStderr = 512

type cli struct {
	engine
	cmd commander
}

func (c *cli) Name() string { return c.bin }

func (c *cli) healthy(ctx context.Context) bool {
	if _, err := c.cmd.LookPath(c.bin); err != nil {
		return false
	}
	return c.cmd.Exec(ctx, c.bin, []string{"info"}, nil, io.Discard, io.Discard) == nil
}

func (c *cli) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string(nil), c.inspect...), image)
	if err := c.cmd.Exec(ctx, c.bin, args, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, c.bin, err)
	}
	return nil
}

func (c *cli) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	args := []string{"run", "--rm", "-i", "--network", "none", image}
	var stderr bytes.Buffer
	err := c.cmd.Exec(ctx, c.bin, args, stdin, stdout, &stderr)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("running %s container %s: %w", c.bin, image, ctx.Err())
	}

	if msg := tail(stderr.String()); msg != "" {
		return fmt.Errorf("running %s container %s: %w: %s", c.bin, image, err, msg)
	}
	return fmt.Errorf("running %s container %s: %w", c.bin, image, err)
}

func tail(stderr string) string {
	msg := strings.TrimSpace(stderr)
	if len(msg) > maxStderr {
		msg = msg[:maxStderr] + "..."
	}
	return msg
}

// DetectRuntime returns the first of docker and podman that is on PATH and
// answers "info".
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detect(ctx, osCommander{})
}

func detect(ctx context.Context, cmd commander) (Runtime, error) {
	tried := make([]string, 0, len(engines))
	for _, e := range engines {
		c := &cli{engine: e, cmd: cmd}
		if c.healthy(ctx) {
			return c, nil
		}
		tried = append(tried, e.bin)
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoRuntime, strings.Join(tried, ", "))
}
