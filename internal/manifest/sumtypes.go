package manifest

// The compose schema mixes shorthand and long forms for several fields (a command may be a single
// string or an argv list; depends_on may be a bare list of names or a map with per-dependency
// conditions). SPEC_FULL.md §9 calls for tagged variants with asArray/asDictionary/source/target
// accessors instead of duck-typing on interface{} — every sum type below follows that shape.

// Command models `command:`/`entrypoint:`, either a single shell string or an argv list.
type Command struct {
	isSet    bool
	fromList bool
	raw      string
	argv     []string
}

func NewCommandFromString(s string) Command { return Command{isSet: true, raw: s} }
func NewCommandFromList(argv []string) Command {
	return Command{isSet: true, fromList: true, argv: append([]string(nil), argv...)}
}

func (c Command) IsSet() bool { return c.isSet }

// AsArray returns the argv form. A string form comes back as a single element holding the raw
// string — AsArray itself never guesses at quoting. internal/healthcheck shell-splits string
// forms at the point of use; startService passes AsArray's result to the runtime unsplit.
func (c Command) AsArray() []string {
	if !c.isSet {
		return nil
	}
	if c.fromList {
		return append([]string(nil), c.argv...)
	}
	return []string{c.raw}
}

// Source returns the raw string form when the manifest used shorthand, and ok=false otherwise.
func (c Command) Source() (string, bool) {
	if c.isSet && !c.fromList {
		return c.raw, true
	}
	return "", false
}

// Environment models `environment:`, either `KEY=VALUE` list or a `KEY: VALUE` mapping. Both
// normalize to a dictionary; a value-less `KEY` (no `=`) is carried with an empty string value,
// matching compose's "inherit from the resolver's ambient environment" shorthand.
type Environment struct {
	entries map[string]string
	order   []string
}

func NewEnvironmentFromMap(m map[string]string) Environment {
	e := Environment{entries: make(map[string]string, len(m))}
	for k, v := range m {
		e.Set(k, v)
	}
	return e
}

func NewEnvironmentFromList(kv []string) Environment {
	e := Environment{entries: make(map[string]string)}
	for _, item := range kv {
		key, value := splitKV(item)
		e.Set(key, value)
	}
	return e
}

func (e *Environment) Set(key, value string) {
	if e.entries == nil {
		e.entries = make(map[string]string)
	}
	if _, exists := e.entries[key]; !exists {
		e.order = append(e.order, key)
	}
	e.entries[key] = value
}

// AsDictionary returns the resolved key/value map.
func (e Environment) AsDictionary() map[string]string {
	out := make(map[string]string, len(e.entries))
	for k, v := range e.entries {
		out[k] = v
	}
	return out
}

// AsArray returns `KEY=VALUE` pairs in first-seen order, the form runtime capabilities expect.
func (e Environment) AsArray() []string {
	out := make([]string, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, k+"="+e.entries[k])
	}
	return out
}

func splitKV(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// HealthCondition is the depends_on condition enum.
type HealthCondition string

const (
	ConditionServiceStarted HealthCondition = "service_started"
	ConditionServiceHealthy HealthCondition = "service_healthy"
)

type DependsOnEntry struct {
	Condition HealthCondition
	Restart   bool
}

// DependsOn models `depends_on:`, either a bare list of service names (implying
// ConditionServiceStarted) or a map of name to {condition, restart}.
type DependsOn struct {
	entries map[string]DependsOnEntry
	order   []string
}

func NewDependsOnFromList(names []string) DependsOn {
	d := DependsOn{entries: make(map[string]DependsOnEntry, len(names))}
	for _, n := range names {
		d.set(n, DependsOnEntry{Condition: ConditionServiceStarted})
	}
	return d
}

func NewDependsOnFromMap(m map[string]DependsOnEntry) DependsOn {
	d := DependsOn{entries: make(map[string]DependsOnEntry, len(m))}
	for n, e := range m {
		if e.Condition == "" {
			e.Condition = ConditionServiceStarted
		}
		d.set(n, e)
	}
	return d
}

func (d *DependsOn) set(name string, entry DependsOnEntry) {
	if d.entries == nil {
		d.entries = make(map[string]DependsOnEntry)
	}
	if _, exists := d.entries[name]; !exists {
		d.order = append(d.order, name)
	}
	d.entries[name] = entry
}

// AsDictionary returns the normalized dependency map.
func (d DependsOn) AsDictionary() map[string]DependsOnEntry {
	out := make(map[string]DependsOnEntry, len(d.entries))
	for k, v := range d.entries {
		out[k] = v
	}
	return out
}

// Names returns dependency names in first-seen order, for deterministic iteration.
func (d DependsOn) Names() []string {
	return append([]string(nil), d.order...)
}

func (d DependsOn) Len() int { return len(d.entries) }

// NetworkAttachment is the per-service network long form: aliases plus a static IPv4 address.
type NetworkAttachment struct {
	Aliases     []string
	IPv4Address string
}

// Networks models a service's `networks:` field: a bare list of network names, or a map of name
// to attachment options.
type Networks struct {
	entries map[string]NetworkAttachment
	order   []string
}

func NewNetworksFromList(names []string) Networks {
	n := Networks{entries: make(map[string]NetworkAttachment, len(names))}
	for _, name := range names {
		n.set(name, NetworkAttachment{})
	}
	return n
}

func NewNetworksFromMap(m map[string]NetworkAttachment) Networks {
	n := Networks{entries: make(map[string]NetworkAttachment, len(m))}
	for name, a := range m {
		n.set(name, a)
	}
	return n
}

func (n *Networks) set(name string, a NetworkAttachment) {
	if n.entries == nil {
		n.entries = make(map[string]NetworkAttachment)
	}
	if _, exists := n.entries[name]; !exists {
		n.order = append(n.order, name)
	}
	n.entries[name] = a
}

func (n Networks) AsDictionary() map[string]NetworkAttachment {
	out := make(map[string]NetworkAttachment, len(n.entries))
	for k, v := range n.entries {
		out[k] = v
	}
	return out
}

func (n Networks) AsArray() []string { return append([]string(nil), n.order...) }

// EnvFile models `env_file:`, either a single path or a list of paths, always normalized to a
// list in declaration order.
type EnvFile struct {
	paths []string
}

func NewEnvFileFromString(path string) EnvFile { return EnvFile{paths: []string{path}} }
func NewEnvFileFromList(paths []string) EnvFile {
	return EnvFile{paths: append([]string(nil), paths...)}
}

func (f EnvFile) AsArray() []string { return append([]string(nil), f.paths...) }

// External models the polymorphic `external:` field: a boolean, or `{name: "alias"}`. Both forms
// normalize to a flag plus an optional alias.
type External struct {
	Enabled bool
	Alias   string
}

func NewExternalFromBool(enabled bool) External { return External{Enabled: enabled} }
func NewExternalFromName(name string) External  { return External{Enabled: true, Alias: name} }

// ResolvedName returns the alias if set, else fallback (the resource's own declared name).
func (e External) ResolvedName(fallback string) string {
	if e.Alias != "" {
		return e.Alias
	}
	return fallback
}
