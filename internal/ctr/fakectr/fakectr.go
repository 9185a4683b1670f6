// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package fakectr provides an in-memory ctr.Client for tests.
package fakectr

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/eminwux/kuplat/internal/ctr"
)

// Container is the fake engine's record of a container.
type Container struct {
	Spec    ctr.ContainerSpec
	ID      string
	Running bool
	// Files holds content copied in with CopyToContainer, keyed by full path.
	Files map[string][]byte
	// Execs records every command executed in the container.
	Execs []ctr.ExecSpec
}

// Engine is a goroutine-safe in-memory container engine.
type Engine struct {
	mu sync.Mutex

	containers map[string]*Container
	images     map[string]ctr.ImageInfo
	networks   map[string]*ctr.NetworkInfo
	volumes    map[string]ctr.VolumeInfo
	seq        int

	// ExecFn overrides exec results. Returning a nil error with a zero-value
	// result means success.
	ExecFn func(container string, spec ctr.ExecSpec) (ctr.ExecResult, error)
	// ExecContextFn takes precedence over ExecFn and sees the caller's
	// context, for commands that hang until cancelled.
	ExecContextFn func(ctx context.Context, container string, spec ctr.ExecSpec) (ctr.ExecResult, error)
	// PullFn lets tests fail pulls.
	PullFn func(ref string) error
	// StartFn lets tests fail starts.
	StartFn func(name string) error
	// CreateFn observes or fails creates.
	CreateFn func(spec ctr.ContainerSpec) error

	// Calls counts invocations per method name.
	Calls map[string]int
}

var _ ctr.Client = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{
		containers: make(map[string]*Container),
		images:     make(map[string]ctr.ImageInfo),
		networks:   make(map[string]*ctr.NetworkInfo),
		volumes:    make(map[string]ctr.VolumeInfo),
		Calls:      make(map[string]int),
	}
}

func (e *Engine) record(method string) {
	e.Calls[method]++
}

func (e *Engine) nextID(prefix string) string {
	e.seq++
	return fmt.Sprintf("%s%04d", prefix, e.seq)
}

// CallCount returns how often method was called.
func (e *Engine) CallCount(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Calls[method]
}

// Container returns a copy of the named container record.
func (e *Engine) Container(name string) (Container, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.containers[name]
	if !ok {
		return Container{}, false
	}
	out := *c
	out.Files = maps.Clone(c.Files)
	out.Execs = append([]ctr.ExecSpec(nil), c.Execs...)
	return out, true
}

// ContainerNames lists every container name.
func (e *Engine) ContainerNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.containers)
}

// ImageRefs lists every image reference known to the engine.
func (e *Engine) ImageRefs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.images)
}

// NetworkNames lists every network name.
func (e *Engine) NetworkNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.networks)
}

// VolumeNames lists every volume name.
func (e *Engine) VolumeNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.volumes)
}

// AddImage seeds an image.
func (e *Engine) AddImage(ref string, labels map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.images[ref] = ctr.ImageInfo{ID: e.nextID("sha256:"), Tags: []string{ref}, Labels: labels}
}

// SetRunning flips the running state of a container, simulating a crash.
func (e *Engine) SetRunning(name string, running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.containers[name]; ok {
		c.Running = running
	}
}

func (e *Engine) Connect(context.Context) error { return nil }
func (e *Engine) Close() error                  { return nil }
func (e *Engine) Ping(context.Context) error    { return nil }

func (e *Engine) InspectContainer(_ context.Context, name string) (ctr.ContainerInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("InspectContainer")
	c, ok := e.containers[name]
	if !ok {
		return ctr.ContainerInfo{}, fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	return e.info(c), nil
}

func (e *Engine) info(c *Container) ctr.ContainerInfo {
	state := "exited"
	if c.Running {
		state = "running"
	}
	info := ctr.ContainerInfo{
		ID:      c.ID,
		Name:    c.Spec.Name,
		Image:   c.Spec.Image,
		State:   state,
		Running: c.Running,
		Labels:  maps.Clone(c.Spec.Labels),
	}
	for name, n := range e.networks {
		for _, member := range n.Containers {
			if member == c.Spec.Name {
				info.Networks = append(info.Networks, name)
			}
		}
	}
	sort.Strings(info.Networks)
	return info
}

func (e *Engine) ListContainers(_ context.Context, labels map[string]string) ([]ctr.ContainerInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ListContainers")
	var out []ctr.ContainerInfo
	for _, name := range sortedKeys(e.containers) {
		c := e.containers[name]
		if matches(c.Spec.Labels, labels) {
			out = append(out, e.info(c))
		}
	}
	return out, nil
}

func (e *Engine) CreateContainer(_ context.Context, spec ctr.ContainerSpec) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateContainer")
	if spec.Name == "" {
		return "", ctr.ErrEmptyName
	}
	if _, ok := e.containers[spec.Name]; ok {
		return "", fmt.Errorf("%w: container %s", ctr.ErrAlreadyExists, spec.Name)
	}
	if _, ok := e.images[spec.Image]; !ok {
		return "", fmt.Errorf("%w: %s", ctr.ErrImageNotFound, spec.Image)
	}
	if e.CreateFn != nil {
		if err := e.CreateFn(spec); err != nil {
			return "", err
		}
	}
	for _, m := range spec.Mounts {
		if m.Bind {
			continue
		}
		if _, ok := e.volumes[m.Source]; !ok {
			e.volumes[m.Source] = ctr.VolumeInfo{Name: m.Source}
		}
	}
	if spec.Network != "" {
		n, ok := e.networks[spec.Network]
		if !ok {
			return "", fmt.Errorf("%w: %s", ctr.ErrNetworkNotFound, spec.Network)
		}
		n.Containers = append(n.Containers, spec.Name)
	}
	id := e.nextID("c")
	e.containers[spec.Name] = &Container{Spec: spec, ID: id, Files: map[string][]byte{}}
	return id, nil
}

func (e *Engine) StartContainer(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("StartContainer")
	c, ok := e.containers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	if e.StartFn != nil {
		if err := e.StartFn(name); err != nil {
			return err
		}
	}
	c.Running = true
	return nil
}

func (e *Engine) StopContainer(_ context.Context, name string, _ ctr.StopOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("StopContainer")
	c, ok := e.containers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	c.Running = false
	return nil
}

func (e *Engine) WaitContainer(_ context.Context, name string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("WaitContainer")
	if _, ok := e.containers[name]; !ok {
		return 0, fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	return 0, nil
}

func (e *Engine) RemoveContainer(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RemoveContainer")
	if _, ok := e.containers[name]; !ok {
		return fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	delete(e.containers, name)
	for _, n := range e.networks {
		n.Containers = without(n.Containers, name)
	}
	return nil
}

func (e *Engine) KillContainer(_ context.Context, name, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("KillContainer")
	c, ok := e.containers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	c.Running = false
	return nil
}

func (e *Engine) CommitContainer(_ context.Context, name string, opts ctr.CommitOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CommitContainer")
	c, ok := e.containers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	labels := maps.Clone(c.Spec.Labels)
	if labels == nil {
		labels = map[string]string{}
	}
	maps.Copy(labels, opts.Labels)
	id := e.nextID("sha256:")
	e.images[opts.Reference] = ctr.ImageInfo{ID: id, Tags: []string{opts.Reference}, Labels: labels}
	return id, nil
}

func (e *Engine) Exec(ctx context.Context, name string, spec ctr.ExecSpec) (ctr.ExecResult, error) {
	e.mu.Lock()
	e.record("Exec")
	c, ok := e.containers[name]
	if !ok {
		e.mu.Unlock()
		return ctr.ExecResult{}, fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	if !c.Running {
		e.mu.Unlock()
		return ctr.ExecResult{}, fmt.Errorf("container %s is not running", name)
	}
	c.Execs = append(c.Execs, spec)
	fn, ctxFn := e.ExecFn, e.ExecContextFn
	e.mu.Unlock()

	if ctxFn != nil {
		return ctxFn(ctx, name, spec)
	}
	if fn != nil {
		return fn(name, spec)
	}
	return ctr.ExecResult{}, nil
}

func (e *Engine) ExecInteractive(
	ctx context.Context,
	name string,
	spec ctr.ExecSpec,
	streams ctr.Streams,
) (int, error) {
	res, err := e.Exec(ctx, name, spec)
	if err != nil {
		return -1, err
	}
	if streams.Stdout != nil {
		_, _ = io.WriteString(streams.Stdout, res.Stdout)
	}
	return res.ExitCode, nil
}

func (e *Engine) CopyToContainer(_ context.Context, name, dir string, content io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CopyToContainer")
	c, ok := e.containers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, name)
	}
	tr := tar.NewReader(content)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		var buf bytes.Buffer
		if _, err = io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}
		c.Files[strings.TrimSuffix(dir, "/")+"/"+hdr.Name] = buf.Bytes()
	}
}

func (e *Engine) ImageExists(_ context.Context, ref string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ImageExists")
	_, ok := e.images[ref]
	return ok, nil
}

func (e *Engine) PullImage(_ context.Context, ref string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("PullImage")
	if e.PullFn != nil {
		if err := e.PullFn(ref); err != nil {
			return err
		}
	}
	if _, ok := e.images[ref]; !ok {
		e.images[ref] = ctr.ImageInfo{ID: e.nextID("sha256:"), Tags: []string{ref}}
	}
	return nil
}

func (e *Engine) RemoveImage(_ context.Context, ref string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RemoveImage")
	if _, ok := e.images[ref]; !ok {
		return fmt.Errorf("%w: %s", ctr.ErrImageNotFound, ref)
	}
	delete(e.images, ref)
	return nil
}

func (e *Engine) ListImages(_ context.Context, labels map[string]string) ([]ctr.ImageInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ListImages")
	var out []ctr.ImageInfo
	for _, ref := range sortedKeys(e.images) {
		img := e.images[ref]
		if matches(img.Labels, labels) {
			out = append(out, img)
		}
	}
	return out, nil
}

func (e *Engine) CreateNetwork(_ context.Context, name string, labels map[string]string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateNetwork")
	if _, ok := e.networks[name]; ok {
		return "", fmt.Errorf("%w: network %s", ctr.ErrAlreadyExists, name)
	}
	id := e.nextID("n")
	e.networks[name] = &ctr.NetworkInfo{ID: id, Name: name, Labels: maps.Clone(labels)}
	return id, nil
}

func (e *Engine) InspectNetwork(_ context.Context, name string) (ctr.NetworkInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("InspectNetwork")
	n, ok := e.networks[name]
	if !ok {
		return ctr.NetworkInfo{}, fmt.Errorf("%w: %s", ctr.ErrNetworkNotFound, name)
	}
	out := *n
	out.Containers = append([]string(nil), n.Containers...)
	sort.Strings(out.Containers)
	return out, nil
}

func (e *Engine) ListNetworks(_ context.Context, labels map[string]string) ([]ctr.NetworkInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ListNetworks")
	var out []ctr.NetworkInfo
	for _, name := range sortedKeys(e.networks) {
		n := e.networks[name]
		if matches(n.Labels, labels) {
			out = append(out, ctr.NetworkInfo{ID: n.ID, Name: n.Name, Labels: n.Labels})
		}
	}
	return out, nil
}

func (e *Engine) RemoveNetwork(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RemoveNetwork")
	n, ok := e.networks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ctr.ErrNetworkNotFound, name)
	}
	if len(n.Containers) > 0 {
		return fmt.Errorf("network %s has active endpoints", name)
	}
	delete(e.networks, name)
	return nil
}

func (e *Engine) ConnectNetwork(_ context.Context, network, container string, _ []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ConnectNetwork")
	n, ok := e.networks[network]
	if !ok {
		return fmt.Errorf("%w: %s", ctr.ErrNetworkNotFound, network)
	}
	if _, ok = e.containers[container]; !ok {
		return fmt.Errorf("%w: %s", ctr.ErrContainerNotFound, container)
	}
	for _, member := range n.Containers {
		if member == container {
			return fmt.Errorf("%w: endpoint %s in network %s", ctr.ErrAlreadyExists, container, network)
		}
	}
	n.Containers = append(n.Containers, container)
	return nil
}

func (e *Engine) DisconnectNetwork(_ context.Context, network, container string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DisconnectNetwork")
	n, ok := e.networks[network]
	if !ok {
		return fmt.Errorf("%w: %s", ctr.ErrNetworkNotFound, network)
	}
	n.Containers = without(n.Containers, container)
	return nil
}

func (e *Engine) CreateVolume(_ context.Context, name string, labels map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateVolume")
	if _, ok := e.volumes[name]; !ok {
		e.volumes[name] = ctr.VolumeInfo{Name: name, Labels: maps.Clone(labels)}
	}
	return nil
}

func (e *Engine) InspectVolume(_ context.Context, name string) (ctr.VolumeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("InspectVolume")
	v, ok := e.volumes[name]
	if !ok {
		return ctr.VolumeInfo{}, fmt.Errorf("%w: %s", ctr.ErrVolumeNotFound, name)
	}
	return v, nil
}

func (e *Engine) ListVolumes(_ context.Context, labels map[string]string) ([]ctr.VolumeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ListVolumes")
	var out []ctr.VolumeInfo
	for _, name := range sortedKeys(e.volumes) {
		v := e.volumes[name]
		if matches(v.Labels, labels) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (e *Engine) RemoveVolume(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RemoveVolume")
	if _, ok := e.volumes[name]; !ok {
		return fmt.Errorf("%w: %s", ctr.ErrVolumeNotFound, name)
	}
	for _, c := range e.containers {
		for _, m := range c.Spec.Mounts {
			if !m.Bind && m.Source == name {
				return fmt.Errorf("volume %s is in use by %s", name, c.Spec.Name)
			}
		}
	}
	delete(e.volumes, name)
	return nil
}

func matches(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func without(list []string, item string) []string {
	out := list[:0]
	for _, v := range list {
		if v != item {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
