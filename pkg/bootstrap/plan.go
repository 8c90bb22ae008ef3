// pkg/bootstrap/plan.go

// Package bootstrap orchestrates the recovery of a lagging Ozone Manager
// replica by installing a fresh RocksDB checkpoint fetched from the
// current Ratis leader.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/cm"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
)

// ManagementAPI is the slice of the management-plane client the workflow
// needs. Tests substitute an httptest-backed or hand-rolled fake.
type ManagementAPI interface {
	ListClusters(ctx context.Context) ([]cm.Cluster, error)
	ListServices(ctx context.Context, cluster string) ([]cm.Service, error)
	ListRoles(ctx context.Context, cluster, service string) ([]cm.Role, error)
	ServiceConfig(ctx context.Context, cluster, service, view string) (cm.ConfigList, error)
	RoleConfig(ctx context.Context, cluster, service, role, view string) (cm.ConfigList, error)
	RoleConfigGroups(ctx context.Context, cluster, service string) ([]cm.RoleConfigGroup, error)
	RoleConfigGroupConfig(ctx context.Context, cluster, service, group, view string) (cm.ConfigList, error)
	RoleCommand(ctx context.Context, cluster, service, command string, roleNames []string) ([]cm.Command, error)
	WaitForCommand(ctx context.Context, id int64, timeout, interval time.Duration) (cm.Command, error)
	Host(ctx context.Context, hostID string) (cm.Host, error)
	BaseHost() (string, error)
}

// Prompter collects operator input for the safety gate.
type Prompter interface {
	Input(prompt string) (string, error)
}

// Options carries the operator's request into the engine.
type Options struct {
	Cluster        string
	TargetHost     string
	Keytab         string
	Principal      string
	SSHUser        string
	SudoUser       string
	DryRun         bool
	LeadershipTest bool
}

// OMRole is one Ozone Manager role with its hostname resolved.
type OMRole struct {
	Name     string
	HostID   string
	Hostname string
}

// Topology is the discovered cluster layout. Built once, then read only.
type Topology struct {
	Cluster   string
	Service   string
	ServiceID string
	CMHost    string
	Roles     []OMRole
}

// Hostnames returns all OM hostnames in discovery order.
func (t Topology) Hostnames() []string {
	hosts := make([]string, 0, len(t.Roles))
	for _, r := range t.Roles {
		hosts = append(hosts, r.Hostname)
	}
	return hosts
}

// RoleForHost returns the role running on hostname.
func (t Topology) RoleForHost(hostname string) (OMRole, bool) {
	for _, r := range t.Roles {
		if r.Hostname == hostname {
			return r, true
		}
	}
	return OMRole{}, false
}

// Plan is everything the mutating phases need, resolved up front. Fields
// are written during the validation phases and read-only afterward.
type Plan struct {
	Topology Topology
	Target   OMRole
	Leader   string

	DBDir    string
	DBPath   string
	RatisDir string

	Protocol string
	Port     string

	SecurityEnabled bool
	HTTPKerberos    bool
	Keytab          string
	Principal       string

	SSHUser  string
	SudoUser string

	RunID      int64
	BackupRoot string

	DryRun         bool
	LeadershipTest bool
}

// TempDirTemplate is the mktemp pattern for the staging directory on the
// target host.
func (p *Plan) TempDirTemplate() string {
	return fmt.Sprintf("/tmp/om_bootstrap_%d_XXXXXX", p.RunID)
}

// CheckpointURL is the leader endpoint the download phase fetches.
func (p *Plan) CheckpointURL() string {
	return ozone.CheckpointURL(p.Protocol, p.Leader, p.Port)
}

// RunState is the mutable progress record for one run. Single writer, the
// engine; never persisted.
type RunState struct {
	Phase         string
	StoppedTarget bool
	Started       bool
	TempDir       string

	LeaderLogBefore string
	LeaderLogAfter  string
	TargetLogBefore string
	TargetLogAfter  string
}
