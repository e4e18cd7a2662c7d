// Package registry maintains the orchestrator's in-memory view of running and known containers
// (SPEC_FULL.md §3.3/§4.3): a cache over the persistent state store, hydrated once per process and
// kept in sync by the orchestrator's own writes.
package registry

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/compote-dev/compote/internal/capability"
	"github.com/compote-dev/compote/internal/state"
)

// Registry is the transient per-orchestrator-instance cache of ProjectState.
type Registry struct {
	mu sync.Mutex

	store *state.Store

	hydrated   bool
	runtime    map[string]map[int]capability.ContainerHandle
	serviceIPs map[string]map[int]string
	known      map[string]map[int]state.ContainerInfo
	pfPids     map[string]int
}

func New(store *state.Store) *Registry {
	return &Registry{
		store:      store,
		runtime:    make(map[string]map[int]capability.ContainerHandle),
		serviceIPs: make(map[string]map[int]string),
		known:      make(map[string]map[int]state.ContainerInfo),
		pfPids:     make(map[string]int),
	}
}

// Hydrate reconciles the in-memory registry with the persisted ProjectState. It runs lazily on
// the first orchestrator operation of a process instance (§4.3) and tolerates two legacy
// display-name forms (§12.7 / §9's open question): containers that carry ServiceName+ReplicaIndex
// are grouped directly; containers persisted by earlier versions with the service name stored as
// Name and no ServiceName use Name as the service and default replica 1.
func (r *Registry) Hydrate(onFailure func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hydrated {
		return
	}
	r.hydrated = true

	st, err := r.store.Load()
	if err != nil {
		if onFailure != nil {
			onFailure(err)
		}
		return
	}

	for _, info := range st.Containers {
		service, replica := resolveServiceAndReplica(info)
		if r.known[service] == nil {
			r.known[service] = make(map[int]state.ContainerInfo)
		}
		r.known[service][replica] = info
	}
	for id, pf := range st.PortForwards {
		r.pfPids[id] = pf.Pid
	}
}

// resolveServiceAndReplica implements the §12.7 tolerance rule: prefer ServiceName+ReplicaIndex
// when present, else fall back to treating Name as the service with an implied replica 1.
func resolveServiceAndReplica(info state.ContainerInfo) (string, int) {
	if info.ServiceName != "" {
		replica := info.ReplicaIndex
		if replica == 0 {
			replica = 1
		}
		return info.ServiceName, replica
	}
	return info.Name, 1
}

func (r *Registry) AttachRuntime(service string, replica int, handle capability.ContainerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runtime[service] == nil {
		r.runtime[service] = make(map[int]capability.ContainerHandle)
	}
	r.runtime[service][replica] = handle
}

func (r *Registry) DetachRuntime(service string, replica int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runtime[service], replica)
}

func (r *Registry) RuntimeHandle(service string, replica int) (capability.ContainerHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.runtime[service][replica]
	return h, ok
}

func (r *Registry) SetServiceIP(service string, replica int, ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.serviceIPs[service] == nil {
		r.serviceIPs[service] = make(map[int]string)
	}
	r.serviceIPs[service][replica] = ip
}

// ServiceIPs returns a snapshot of every known (service, replica, ip) triple, used to build the
// per-container hosts table in startService step 5.
func (r *Registry) ServiceIPs() map[string]map[int]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[int]string, len(r.serviceIPs))
	for svc, replicas := range r.serviceIPs {
		out[svc] = make(map[int]string, len(replicas))
		for replica, ip := range replicas {
			out[svc][replica] = ip
		}
	}
	return out
}

func (r *Registry) SetKnown(service string, replica int, info state.ContainerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.known[service] == nil {
		r.known[service] = make(map[int]state.ContainerInfo)
	}
	r.known[service][replica] = info
}

func (r *Registry) RemoveKnown(service string, replica int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.known[service], replica)
}

// KnownReplicaIndices unions runtime and known keys for a service (§4.3).
func (r *Registry) KnownReplicaIndices(service string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int]bool)
	for replica := range r.runtime[service] {
		seen[replica] = true
	}
	for replica := range r.known[service] {
		seen[replica] = true
	}
	out := make([]int, 0, len(seen))
	for replica := range seen {
		out = append(out, replica)
	}
	sort.Ints(out)
	return out
}

// RunningReplicaCount asks each attached handle whether it is running (§4.3).
func (r *Registry) RunningReplicaCount(ctx context.Context, service string) int {
	r.mu.Lock()
	handles := make(map[int]capability.ContainerHandle, len(r.runtime[service]))
	for replica, h := range r.runtime[service] {
		handles[replica] = h
	}
	r.mu.Unlock()

	count := 0
	for _, h := range handles {
		if running, err := h.IsRunning(ctx); err == nil && running {
			count++
		}
	}
	return count
}

func (r *Registry) SetPortForwardPid(id string, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pfPids[id] = pid
}

func (r *Registry) RemovePortForwardPid(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pfPids, id)
}

// Services returns the union of manifest-declared and known service names, sorted (§4.6.10, ps()).
func Services(manifestServices []string, known map[string]map[int]state.ContainerInfo) []string {
	seen := make(map[string]bool, len(manifestServices)+len(known))
	for _, s := range manifestServices {
		seen[s] = true
	}
	for s := range known {
		seen[s] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Known returns a snapshot of the known-containers cache.
func (r *Registry) Known() map[string]map[int]state.ContainerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[int]state.ContainerInfo, len(r.known))
	for svc, replicas := range r.known {
		out[svc] = make(map[int]state.ContainerInfo, len(replicas))
		for replica, info := range replicas {
			out[svc][replica] = info
		}
	}
	return out
}

// IsRunning reports whether the given (service, replica) has an attached, live handle.
func (r *Registry) IsRunning(ctx context.Context, service string, replica int) bool {
	h, ok := r.RuntimeHandle(service, replica)
	if !ok {
		return false
	}
	running, err := h.IsRunning(ctx)
	return err == nil && running
}

// FormatLogLabel implements the §4.6.9 prefix rule: "service" for replica 1, "service#replica"
// otherwise.
func FormatLogLabel(service string, replica int) string {
	if replica == 1 {
		return service
	}
	return service + "#" + strconv.Itoa(replica)
}
