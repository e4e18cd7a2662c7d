package capability

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
)

// Proto is a port-forward's transport protocol.
type Proto string

const (
	ProtoTCP Proto = "tcp"
	ProtoUDP Proto = "udp"
)

// PortMapping is the parsed form of the §6.2 grammar: `[hostIP:]hostPort:containerPort[/proto]`.
type PortMapping struct {
	HostIP        string
	HostPort      int
	ContainerPort int
	Proto         Proto
}

// String re-emits the canonical form; parsing it and re-emitting is a fixed point (§8).
func (m PortMapping) String() string {
	return fmt.Sprintf("%s:%d:%d/%s", m.HostIP, m.HostPort, m.ContainerPort, m.Proto)
}

// ErrInvalidFormat and ErrUnsupportedProtocol are the two failure modes of the port-mapping
// grammar, named directly by §6.2.
type ErrInvalidFormat struct{ Spec string }

func (e *ErrInvalidFormat) Error() string { return fmt.Sprintf("invalid port mapping %q", e.Spec) }

type ErrUnsupportedProtocol struct{ Proto string }

func (e *ErrUnsupportedProtocol) Error() string {
	return fmt.Sprintf("unsupported protocol %q", e.Proto)
}

// ParsePortMapping implements `[hostIP:]hostPort:containerPort[/proto]`. The proto suffix and the
// colon-separated fields are split here; docker/go-connections/nat only validates the container
// port, and the grammar's own defaulting and range rules are applied after that.
func ParsePortMapping(spec string) (PortMapping, error) {
	proto := ProtoTCP
	body := spec
	if idx := strings.LastIndex(spec, "/"); idx != -1 {
		body = spec[:idx]
		switch strings.ToLower(spec[idx+1:]) {
		case "tcp":
			proto = ProtoTCP
		case "udp":
			proto = ProtoUDP
		default:
			return PortMapping{}, &ErrUnsupportedProtocol{Proto: spec[idx+1:]}
		}
	}

	parts := strings.Split(body, ":")
	var hostIP, hostPortStr, containerPortStr string
	switch len(parts) {
	case 2:
		hostIP = "0.0.0.0"
		hostPortStr, containerPortStr = parts[0], parts[1]
	case 3:
		hostIP, hostPortStr, containerPortStr = parts[0], parts[1], parts[2]
	default:
		return PortMapping{}, &ErrInvalidFormat{Spec: spec}
	}

	if _, err := nat.NewPort("tcp", containerPortStr); err != nil {
		return PortMapping{}, &ErrInvalidFormat{Spec: spec}
	}

	hostPort, err := strconv.Atoi(hostPortStr)
	if err != nil {
		return PortMapping{}, &ErrInvalidFormat{Spec: spec}
	}
	containerPort, err := strconv.Atoi(containerPortStr)
	if err != nil {
		return PortMapping{}, &ErrInvalidFormat{Spec: spec}
	}
	if hostPort < 1 || hostPort > 65535 || containerPort < 1 || containerPort > 65535 {
		return PortMapping{}, &ErrInvalidFormat{Spec: spec}
	}
	if hostIP == "" {
		hostIP = "0.0.0.0"
	}

	return PortMapping{HostIP: hostIP, HostPort: hostPort, ContainerPort: containerPort, Proto: proto}, nil
}

// Selector is the parsed form of `service[#replica]` (§6.2).
type Selector struct {
	Service string
	Replica int  // 0 means "not specified"
	HasAll  bool // true when Replica is unset, meaning "all replicas of Service"
}

type ErrInvalidSelector struct{ Spec string }

func (e *ErrInvalidSelector) Error() string { return fmt.Sprintf("invalid service selector %q", e.Spec) }

func ParseSelector(spec string) (Selector, error) {
	service, replicaStr, hasReplica := strings.Cut(spec, "#")
	if service == "" {
		return Selector{}, &ErrInvalidSelector{Spec: spec}
	}
	if !hasReplica {
		return Selector{Service: service, HasAll: true}, nil
	}
	replica, err := strconv.Atoi(replicaStr)
	if err != nil || replica < 1 {
		return Selector{}, &ErrInvalidSelector{Spec: spec}
	}
	return Selector{Service: service, Replica: replica}, nil
}

// AggregateSelectors implements the §6.2 multi-selector rule: if any selector for a service has
// no replica, the aggregate is ALL; otherwise it's the union of requested indices.
func AggregateSelectors(selectors []Selector) map[string]map[int]bool {
	all := make(map[string]bool)
	agg := make(map[string]map[int]bool)
	for _, s := range selectors {
		if s.HasAll {
			all[s.Service] = true
			continue
		}
		if agg[s.Service] == nil {
			agg[s.Service] = make(map[int]bool)
		}
		agg[s.Service][s.Replica] = true
	}
	for service := range all {
		agg[service] = nil // nil signals ALL to the caller
	}
	return agg
}

// ScaleTarget is the parsed form of `service=replicas` (§6.2).
type ScaleTarget struct {
	Service  string
	Replicas int
}

type ErrInvalidScale struct{ Spec string }

func (e *ErrInvalidScale) Error() string { return fmt.Sprintf("invalid scale target %q", e.Spec) }

func ParseScaleTarget(spec string) (ScaleTarget, error) {
	service, replicasStr, ok := strings.Cut(spec, "=")
	if !ok || service == "" {
		return ScaleTarget{}, &ErrInvalidScale{Spec: spec}
	}
	replicas, err := strconv.Atoi(replicasStr)
	if err != nil || replicas < 0 {
		return ScaleTarget{}, &ErrInvalidScale{Spec: spec}
	}
	return ScaleTarget{Service: service, Replicas: replicas}, nil
}
