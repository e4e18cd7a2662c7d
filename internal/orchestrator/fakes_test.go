package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/compote-dev/compote/internal/capability"
)

// fakeImageHandle is a trivial capability.LocalImageHandle.
type fakeImageHandle struct{ ref string }

func (h *fakeImageHandle) Reference() string { return h.ref }

// fakeImageCapability records every pull/build/push it's asked to perform.
type fakeImageCapability struct {
	mu      sync.Mutex
	pulled  []string
	built   []string
	pushed  []string
	failPull map[string]error
}

func newFakeImageCapability() *fakeImageCapability {
	return &fakeImageCapability{failPull: map[string]error{}}
}

func (f *fakeImageCapability) Pull(ctx context.Context, reference string) (capability.LocalImageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPull[reference]; ok {
		return nil, err
	}
	f.pulled = append(f.pulled, reference)
	return &fakeImageHandle{ref: reference}, nil
}

func (f *fakeImageCapability) Build(ctx context.Context, buildContext, dockerfile, tag string, buildArgs map[string]string) (capability.LocalImageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, tag)
	return &fakeImageHandle{ref: tag}, nil
}

func (f *fakeImageCapability) Push(ctx context.Context, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, reference)
	return nil
}

// fakeVolumeCapability treats every volume as materializing at a deterministic path.
type fakeVolumeCapability struct {
	mu      sync.Mutex
	created map[string]bool
	removed map[string]bool
}

func newFakeVolumeCapability() *fakeVolumeCapability {
	return &fakeVolumeCapability{created: map[string]bool{}, removed: map[string]bool{}}
}

func (f *fakeVolumeCapability) Create(ctx context.Context, name, driver string, external bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[name] = true
	return "/var/lib/fake-volumes/" + name, nil
}

func (f *fakeVolumeCapability) Remove(ctx context.Context, name string, external bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[name] = true
	delete(f.created, name)
	return nil
}

// fakeNetworkCapability assigns sequential fake IPs on Connect.
type fakeNetworkCapability struct {
	mu       sync.Mutex
	created  map[string]bool
	removed  map[string]bool
	nextIP   int
	ipByCtnr map[string]string
}

func newFakeNetworkCapability() *fakeNetworkCapability {
	return &fakeNetworkCapability{created: map[string]bool{}, removed: map[string]bool{}, nextIP: 2, ipByCtnr: map[string]string{}}
}

func (f *fakeNetworkCapability) Create(ctx context.Context, name, driver string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[name] = true
	return nil
}

func (f *fakeNetworkCapability) Connect(ctx context.Context, containerID, networkName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ip := fmt.Sprintf("172.30.0.%d", f.nextIP)
	f.nextIP++
	f.ipByCtnr[containerID] = ip
	return ip, nil
}

func (f *fakeNetworkCapability) Remove(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[name] = true
	return nil
}

// fakeContainerHandle is an in-memory container whose lifecycle transitions are directly
// observable by tests.
type fakeContainerHandle struct {
	mu           sync.Mutex
	id           string
	running      bool
	deleted      bool
	execExitCode int
	execErr      error
	execCalls    [][]string
}

func (h *fakeContainerHandle) ID() string { return h.id }

func (h *fakeContainerHandle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = true
	return nil
}

func (h *fakeContainerHandle) Stop(ctx context.Context, timeout int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	return nil
}

func (h *fakeContainerHandle) Delete(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = true
	return nil
}

func (h *fakeContainerHandle) Wait(ctx context.Context) (int, error) { return 0, nil }

func (h *fakeContainerHandle) Exec(ctx context.Context, argv []string, env []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.execCalls = append(h.execCalls, argv)
	return h.execExitCode, h.execErr
}

func (h *fakeContainerHandle) Logs(ctx context.Context, tail int, follow bool) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("fake log line\n")), nil
}

func (h *fakeContainerHandle) IsRunning(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running, nil
}

// fakeRuntimeCapability hands out one fakeContainerHandle per Create call, keyed by container id.
type fakeRuntimeCapability struct {
	mu       sync.Mutex
	handles  map[string]*fakeContainerHandle
	failNext map[string]error
}

func newFakeRuntimeCapability() *fakeRuntimeCapability {
	return &fakeRuntimeCapability{handles: map[string]*fakeContainerHandle{}, failNext: map[string]error{}}
}

func (f *fakeRuntimeCapability) Create(ctx context.Context, id string, image capability.LocalImageHandle, rootfsBytes int64, readOnly bool, cfg capability.ContainerConfig) (capability.ContainerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failNext[id]; ok {
		return nil, err
	}
	h := &fakeContainerHandle{id: id}
	f.handles[id] = h
	return h, nil
}

func (f *fakeRuntimeCapability) handle(id string) *fakeContainerHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[id]
}

// fakeSupervisorForOrch is a no-op process supervisor recording spawn/terminate calls.
type fakeSupervisorForOrch struct {
	mu         sync.Mutex
	nextPid    int
	terminated []int
}

func (f *fakeSupervisorForOrch) Spawn(ctx context.Context, argv []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPid++
	return f.nextPid, nil
}

func (f *fakeSupervisorForOrch) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeSupervisorForOrch) Which(tool string) bool { return true }
