// pkg/bootstrap/discover.go

package bootstrap

import (
	"context"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
)

// discoverTopology walks cluster → service → roles → hosts and pins the
// target role. Every "not found" carries the names that do exist, so a
// typo in --cluster or --target-host is diagnosable from the error alone.
func (e *Engine) discoverTopology(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	clusters, err := e.api.ListClusters(ctx)
	if err != nil {
		return cerr.Wrap(err, "listing clusters")
	}
	clusterNames := make([]string, 0, len(clusters))
	found := false
	for _, c := range clusters {
		clusterNames = append(clusterNames, c.Name)
		if c.Name == e.opts.Cluster {
			found = true
		}
	}
	if !found {
		return omboot_err.WrapDiscoveryError(
			cerr.Newf("cluster %q not found", e.opts.Cluster), "cluster", clusterNames)
	}

	services, err := e.api.ListServices(ctx, e.opts.Cluster)
	if err != nil {
		return cerr.Wrap(err, "listing services")
	}
	serviceNames := make([]string, 0, len(services))
	var ozoneService string
	for _, s := range services {
		serviceNames = append(serviceNames, s.Name)
		if strings.EqualFold(s.Type, ozone.ServiceType) && ozoneService == "" {
			ozoneService = s.Name
		}
	}
	if ozoneService == "" {
		return omboot_err.WrapDiscoveryError(
			cerr.Newf("no %s service in cluster %q", ozone.ServiceType, e.opts.Cluster),
			"service", serviceNames)
	}

	roles, err := e.api.ListRoles(ctx, e.opts.Cluster, ozoneService)
	if err != nil {
		return cerr.Wrap(err, "listing roles")
	}
	roleNames := make([]string, 0, len(roles))
	var omRoles []OMRole
	for _, r := range roles {
		roleNames = append(roleNames, r.Name)
		if r.Type != ozone.RoleType {
			continue
		}
		host, err := e.api.Host(ctx, r.HostRef.HostID)
		if err != nil {
			return cerr.Wrapf(err, "resolving host %s for role %s", r.HostRef.HostID, r.Name)
		}
		omRoles = append(omRoles, OMRole{Name: r.Name, HostID: r.HostRef.HostID, Hostname: host.Hostname})
	}
	if len(omRoles) == 0 {
		return omboot_err.WrapDiscoveryError(
			cerr.Newf("service %q has no %s roles", ozoneService, ozone.RoleType),
			"role", roleNames)
	}

	cmHost, err := e.api.BaseHost()
	if err != nil {
		return cerr.Wrap(err, "resolving management host")
	}

	e.plan.Topology = Topology{
		Cluster: e.opts.Cluster,
		Service: ozoneService,
		CMHost:  cmHost,
		Roles:   omRoles,
	}

	target, ok := e.plan.Topology.RoleForHost(e.opts.TargetHost)
	if !ok {
		return omboot_err.WrapDiscoveryError(
			cerr.Newf("target host %q runs no %s role", e.opts.TargetHost, ozone.RoleType),
			"host", e.plan.Topology.Hostnames())
	}
	e.plan.Target = target

	if err := e.resolveServiceID(ctx); err != nil {
		return err
	}

	log.Info("Topology discovered",
		zap.String("service", ozoneService),
		zap.String("service_id", e.plan.Topology.ServiceID),
		zap.Strings("om_hosts", e.plan.Topology.Hostnames()),
		zap.String("target_role", target.Name),
		zap.String("cm_host", cmHost))
	return nil
}

// resolveServiceID reads ozone.service.id from service config, falling
// back to `ozone getconf` on the management host when it is not managed
// there. The ID is mandatory; every consensus CLI call needs it.
func (e *Engine) resolveServiceID(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	cfg, err := e.api.ServiceConfig(ctx, e.plan.Topology.Cluster, e.plan.Topology.Service, "full")
	if err != nil {
		return cerr.Wrap(err, "reading service config")
	}
	if id := strings.TrimSpace(cfg.Get(ozone.KeyServiceID)); id != "" {
		e.plan.Topology.ServiceID = id
		return nil
	}

	log.Debug("Service ID not in managed config, querying via CLI",
		zap.String("host", e.plan.Topology.CMHost))
	res, err := e.runChecked(ctx, e.plan.Topology.CMHost, ozone.GetConfCommand(ozone.KeyServiceID))
	if err != nil {
		return cerr.Wrapf(err, "resolving %s", ozone.KeyServiceID)
	}
	id := lastNonEmptyLine(res.Stdout)
	if id == "" {
		return cerr.Newf("%s is empty; cannot address the consensus group", ozone.KeyServiceID)
	}
	e.plan.Topology.ServiceID = id
	return nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(lines[i]); t != "" {
			return t
		}
	}
	return ""
}
