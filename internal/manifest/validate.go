package manifest

import "fmt"

// ValidationError reports a single manifest invariant violation, always naming the offending
// token per §7's "Manifest errors ... reported with the offending token; no recovery".
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the §3.1 invariants that don't require full graph traversal (that is
// internal/depgraph's job: full cycle detection and batch ordering). Neither depgraph.Build nor
// orchestrator.New runs Validate; callers run it before handing over a ComposeFile.
func Validate(cf *ComposeFile) error {
	if cf == nil {
		return validationErrorf("manifest: compose file is nil")
	}
	if len(cf.Services) == 0 {
		return validationErrorf("manifest: services must not be empty")
	}

	for _, name := range sortedKeys(cf.Services) {
		svc := cf.Services[name]

		for _, dep := range svc.DependsOn.Names() {
			if dep == name {
				return validationErrorf("service %q: dependsOn references itself", name)
			}
			if _, ok := cf.Services[dep]; !ok {
				return validationErrorf("service %q: dependsOn references unknown service %q", name, dep)
			}
		}

		if err := validateReferences(name, "configs", svc.Configs, configNames(cf.Configs)); err != nil {
			return err
		}
		if err := validateReferences(name, "secrets", svc.Secrets, secretNames(cf.Secrets)); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(cf.Configs) {
		if cf.Configs[name].External.Enabled {
			return validationErrorf("config %q: external configs are not supported by the core", name)
		}
	}
	for _, name := range sortedKeys(cf.Secrets) {
		if cf.Secrets[name].External.Enabled {
			return validationErrorf("secret %q: external secrets are not supported by the core", name)
		}
	}

	return nil
}

func validateReferences(serviceName, kind string, refs []ConfigReference, defined map[string]struct{}) error {
	for _, ref := range refs {
		if _, ok := defined[ref.Source]; !ok {
			return validationErrorf("service %q: %s reference %q has no top-level definition", serviceName, kind, ref.Source)
		}
	}
	return nil
}

func configNames(defs map[string]ConfigDef) map[string]struct{} {
	out := make(map[string]struct{}, len(defs))
	for name := range defs {
		out[name] = struct{}{}
	}
	return out
}

func secretNames(defs map[string]SecretDef) map[string]struct{} {
	out := make(map[string]struct{}, len(defs))
	for name := range defs {
		out[name] = struct{}{}
	}
	return out
}
