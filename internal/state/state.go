// Package state implements the persistent per-project document of SPEC_FULL.md §3.2/§4.4/§6.3:
// containers, networks, volumes, and port forwards, addressed by the stable naming conventions
// the orchestrator relies on across process invocations.
package state

import (
	"strconv"
	"time"
)

type ContainerInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ImageReference string    `json:"imageReference"`
	ServiceName    string    `json:"serviceName"`
	ReplicaIndex   int       `json:"replicaIndex"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NetworkInfo struct {
	Name    string `json:"name"`
	Driver  string `json:"driver"`
	Subnet  string `json:"subnet,omitempty"`
	Gateway string `json:"gateway,omitempty"`
}

type VolumeInfo struct {
	Name       string `json:"name"`
	Driver     string `json:"driver"`
	MountPath  string `json:"mountPath"`
	IsExternal bool   `json:"isExternal"`
}

type PortForwardInfo struct {
	ID           string `json:"id"`
	ServiceName  string `json:"serviceName"`
	ReplicaIndex int    `json:"replicaIndex"`
	HostIP       string `json:"hostIP"`
	HostPort     int    `json:"hostPort"`
	TargetIP     string `json:"targetIP"`
	TargetPort   int    `json:"targetPort"`
	Proto        string `json:"proto"`
	Pid          int    `json:"pid"`
}

// ProjectState is the document persisted at <user-app-support>/compote/state/<project>.json.
type ProjectState struct {
	Containers   map[string]ContainerInfo   `json:"containers"`
	Networks     map[string]NetworkInfo     `json:"networks"`
	Volumes      map[string]VolumeInfo      `json:"volumes"`
	PortForwards map[string]PortForwardInfo `json:"portForwards"`
}

func newEmptyState() *ProjectState {
	return &ProjectState{
		Containers:   make(map[string]ContainerInfo),
		Networks:     make(map[string]NetworkInfo),
		Volumes:      make(map[string]VolumeInfo),
		PortForwards: make(map[string]PortForwardInfo),
	}
}

// ContainerName implements the §3.2 naming convention: "{project}_{service}_{replica}".
func ContainerName(project, service string, replica int) string {
	return project + "_" + service + "_" + strconv.Itoa(replica)
}

// DisplayName implements "service for replica 1, {service}-{replica} otherwise".
func DisplayName(service string, replica int) string {
	if replica == 1 {
		return service
	}
	return service + "-" + strconv.Itoa(replica)
}

// ResourceName implements the per-project resource naming convention for networks and named
// volumes: "{project}_{name}".
func ResourceName(project, name string) string {
	return project + "_" + name
}

// PortForwardID implements "{service}#{replica}#{proto}#{hostPort}", unique per mapping.
func PortForwardID(service string, replica int, proto string, hostPort int) string {
	return service + "#" + strconv.Itoa(replica) + "#" + proto + "#" + strconv.Itoa(hostPort)
}

