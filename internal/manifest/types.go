// Package manifest is the typed in-memory representation of a decoded compose document
// (SPEC_FULL.md §3.1). It never decodes YAML itself — see fromcompose.go for the documented
// boundary that accepts an already-decoded compose-go/v2 project.
package manifest

// ComposeFile is the root of a decoded compose document.
type ComposeFile struct {
	Version  string
	Services map[string]Service
	Networks map[string]Network
	Volumes  map[string]Volume
	Configs  map[string]ConfigDef
	Secrets  map[string]SecretDef
}

// Build describes how to build an image from a local context, as opposed to pulling one.
type Build struct {
	Context    string
	Dockerfile string
	Args       map[string]string
	Target     string
}

// Healthcheck mirrors the compose healthcheck block. Durations are left as raw strings; callers
// use ParseDuration (internal/healthcheck) at the point of use, per the §4.6.7 grammar.
type Healthcheck struct {
	Test        Command
	Interval    string
	Timeout     string
	Retries     int
	StartPeriod string
	Disable     bool
}

type ResourceLimits struct {
	CPUs   string
	Memory string
}

type Deploy struct {
	Replicas      int
	Resources     *ResourceLimits
	RestartPolicy string
}

// ConfigReference / SecretReference model the polymorphic `name` OR `{source, target?}` entries
// of a service's configs/secrets list (§3.1).
type ConfigReference struct {
	Source string
	Target string
}

type Service struct {
	Name        string
	Image       string
	Build       *Build
	Hostname    string
	WorkingDir  string
	User        string
	Command     Command
	Entrypoint  Command
	Environment Environment
	EnvFiles    EnvFile
	Ports       []string
	Volumes     []string
	Tmpfs       []string
	Networks    Networks
	Configs     []ConfigReference
	Secrets     []ConfigReference
	DependsOn   DependsOn
	Healthcheck *Healthcheck
	Deploy      *Deploy
	Restart     string
	Labels      map[string]string
	Profiles    []string
}

type IPAMPool struct {
	Subnet  string
	Gateway string
}

type Network struct {
	Driver     string
	DriverOpts map[string]string
	IPAMPools  []IPAMPool
	External   External
	Internal   bool
	Attachable bool
	Labels     map[string]string
	Name       string
}

type Volume struct {
	Driver     string
	DriverOpts map[string]string
	External   External
	Labels     map[string]string
	Name       string
}

// ConfigDef / SecretDef are top-level `configs:`/`secrets:` definitions. Only file-backed,
// non-external definitions are supported by the core (§3.1 invariants); External.Enabled on one of
// these always fails validation.
type ConfigDef struct {
	File     string
	External External
}

type SecretDef struct {
	File     string
	External External
}
