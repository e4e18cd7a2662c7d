package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/moby/sys/atomicwriter"
)

// StoreError wraps an I/O failure from a Store operation (§7's "State errors ... surfaced on
// writes").
type StoreError struct {
	Op      string
	Project string
	Cause   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("state store: %s(%s): %v", e.Op, e.Project, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// Store manages the persisted ProjectState document for one project. Every read-modify-write
// helper takes storeMutex, matching §4.4's "exclusive per-store lock that serializes concurrent
// orchestrator operations within one process"; cross-process safety relies on the atomic rename,
// not on this lock.
type Store struct {
	root    string
	project string

	storeMutex sync.Mutex

	watcher      *fsnotify.Watcher
	watcherClose chan struct{}
	onExternal   func()
}

// NewStore opens a store rooted at <stateRoot>/<project>.json (§6.3). onExternalChange, if
// non-nil, is invoked (from a background goroutine) whenever the file is written or created on
// disk, including by this Store's own saves — an observability signal, not a locking mechanism
// (SPEC_FULL.md §12.6).
func NewStore(stateRoot, project string, onExternalChange func()) (*Store, error) {
	if err := os.MkdirAll(stateRoot, 0755); err != nil {
		return nil, &StoreError{Op: "open", Project: project, Cause: err}
	}

	s := &Store{root: stateRoot, project: project, onExternal: onExternalChange}

	if onExternalChange != nil {
		watcher, err := fsnotify.NewWatcher()
		if err == nil {
			if err := watcher.Add(stateRoot); err == nil {
				s.watcher = watcher
				s.watcherClose = make(chan struct{})
				go s.watchLoop()
			} else {
				watcher.Close()
			}
		}
	}

	return s, nil
}

func (s *Store) watchLoop() {
	target := s.path()
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == target && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				if s.onExternal != nil {
					s.onExternal()
				}
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		case <-s.watcherClose:
			return
		}
	}
}

// Close releases the store's file watcher, if any.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.watcherClose)
	return s.watcher.Close()
}

func (s *Store) path() string {
	return filepath.Join(s.root, s.project+".json")
}

// Load reads and parses the project's state document. A missing file is not an error: it
// normalizes to an empty ProjectState, matching hydration's "treat as empty" rule (§7).
func (s *Store) Load() (*ProjectState, error) {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*ProjectState, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return newEmptyState(), nil
	}
	if err != nil {
		return nil, &StoreError{Op: "load", Project: s.project, Cause: err}
	}

	state := newEmptyState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, &StoreError{Op: "load", Project: s.project, Cause: err}
	}
	return state, nil
}

// Save writes the project's state atomically (write-to-temp + rename), with map keys sorted for
// byte-stable output (§6.3: "keys sorted for stability").
func (s *Store) Save(state *ProjectState) error {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()
	return s.saveLocked(state)
}

func (s *Store) saveLocked(st *ProjectState) error {
	data, err := marshalSorted(st)
	if err != nil {
		return &StoreError{Op: "save", Project: s.project, Cause: err}
	}
	if err := atomicwriter.WriteFile(s.path(), data, 0644); err != nil {
		return &StoreError{Op: "save", Project: s.project, Cause: err}
	}
	return nil
}

// Clear removes the project's persisted state file entirely.
func (s *Store) Clear() error {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return &StoreError{Op: "clear", Project: s.project, Cause: err}
	}
	return nil
}

func (s *Store) mutate(fn func(*ProjectState)) error {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()

	st, err := s.loadLocked()
	if err != nil {
		return err
	}
	fn(st)
	return s.saveLocked(st)
}

func (s *Store) UpdateContainer(info ContainerInfo) error {
	return s.mutate(func(st *ProjectState) { st.Containers[info.Name] = info })
}

func (s *Store) RemoveContainer(name string) error {
	return s.mutate(func(st *ProjectState) { delete(st.Containers, name) })
}

func (s *Store) UpdateNetwork(info NetworkInfo) error {
	return s.mutate(func(st *ProjectState) { st.Networks[info.Name] = info })
}

func (s *Store) RemoveNetwork(name string) error {
	return s.mutate(func(st *ProjectState) { delete(st.Networks, name) })
}

func (s *Store) UpdateVolume(info VolumeInfo) error {
	return s.mutate(func(st *ProjectState) { st.Volumes[info.Name] = info })
}

func (s *Store) RemoveVolume(name string) error {
	return s.mutate(func(st *ProjectState) { delete(st.Volumes, name) })
}

func (s *Store) UpdatePortForward(info PortForwardInfo) error {
	return s.mutate(func(st *ProjectState) { st.PortForwards[info.ID] = info })
}

func (s *Store) RemovePortForward(id string) error {
	return s.mutate(func(st *ProjectState) { delete(st.PortForwards, id) })
}

// marshalSorted re-encodes a ProjectState through sorted-key intermediate maps so repeated saves
// of equivalent state are byte-identical (§6.3, and the save(load(s)) == s round-trip of §8).
func marshalSorted(st *ProjectState) ([]byte, error) {
	type sortedState struct {
		Containers   json.RawMessage `json:"containers"`
		Networks     json.RawMessage `json:"networks"`
		Volumes      json.RawMessage `json:"volumes"`
		PortForwards json.RawMessage `json:"portForwards"`
	}

	containers, err := marshalSortedMap(st.Containers)
	if err != nil {
		return nil, err
	}
	networks, err := marshalSortedMap(st.Networks)
	if err != nil {
		return nil, err
	}
	volumes, err := marshalSortedMap(st.Volumes)
	if err != nil {
		return nil, err
	}
	forwards, err := marshalSortedMap(st.PortForwards)
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(sortedState{
		Containers:   containers,
		Networks:     networks,
		Volumes:      volumes,
		PortForwards: forwards,
	}, "", "  ")
}

func marshalSortedMap[V any](m map[string]V) (json.RawMessage, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
