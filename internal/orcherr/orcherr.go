// Package orcherr defines the orchestrator's typed error taxonomy (SPEC_FULL.md §7): lifecycle
// misuse and capability-wrapping errors that name the offending service, replica, or mapping.
package orcherr

import "fmt"

type ServiceNotFound struct{ Service string }

func (e *ServiceNotFound) Error() string { return fmt.Sprintf("service %q not found", e.Service) }

type ServiceNotRunning struct{ Service string }

func (e *ServiceNotRunning) Error() string {
	return fmt.Sprintf("service %q is not running", e.Service)
}

type ServiceReplicaNotFound struct {
	Service string
	Replica int
}

func (e *ServiceReplicaNotFound) Error() string {
	return fmt.Sprintf("service %q has no replica %d", e.Service, e.Replica)
}

type InvalidScale struct {
	Service  string
	Replicas int
}

func (e *InvalidScale) Error() string {
	return fmt.Sprintf("invalid scale %d for service %q: replicas must be >= 0", e.Replicas, e.Service)
}

type InvalidServiceSelector struct{ Selector string }

func (e *InvalidServiceSelector) Error() string {
	return fmt.Sprintf("invalid service selector %q", e.Selector)
}

// FailedToStart wraps a capability failure encountered while bringing a replica up.
type FailedToStart struct {
	Service string
	Cause   error
}

func (e *FailedToStart) Error() string {
	return fmt.Sprintf("failed to start service %q: %v", e.Service, e.Cause)
}

func (e *FailedToStart) Unwrap() error { return e.Cause }

// FailedToStop wraps a capability failure encountered while stopping a replica.
type FailedToStop struct {
	Service string
	Cause   error
}

func (e *FailedToStop) Error() string {
	return fmt.Sprintf("failed to stop service %q: %v", e.Service, e.Cause)
}

func (e *FailedToStop) Unwrap() error { return e.Cause }

// PortForwardingFailed wraps a failure from the port-forward supervisor.
type PortForwardingFailed struct{ Detail string }

func (e *PortForwardingFailed) Error() string {
	return fmt.Sprintf("port forwarding failed: %s", e.Detail)
}
