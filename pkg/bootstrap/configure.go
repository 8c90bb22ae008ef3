// pkg/bootstrap/configure.go

package bootstrap

import (
	"context"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/cm"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

// resolveConfiguration reads the OM storage and endpoint configuration
// with role-level values winning over group-level winning over
// service-level, matching how the management plane layers overrides.
func (e *Engine) resolveConfiguration(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	topo := e.plan.Topology

	roleCfg, err := e.api.RoleConfig(ctx, topo.Cluster, topo.Service, e.plan.Target.Name, "full")
	if err != nil {
		return cerr.Wrapf(err, "reading config of role %s", e.plan.Target.Name)
	}

	groupCfg, err := e.baseGroupConfig(ctx)
	if err != nil {
		return err
	}

	svcCfg, err := e.api.ServiceConfig(ctx, topo.Cluster, topo.Service, "full")
	if err != nil {
		return cerr.Wrap(err, "reading service config")
	}

	layered := func(layers []cm.ConfigList, keys ...string) string {
		for _, cfg := range layers {
			for _, k := range keys {
				if v := strings.TrimSpace(cfg.Get(k)); v != "" {
					return v
				}
			}
		}
		return ""
	}
	// Only the storage directories fall back to service config; endpoint
	// settings are role-scoped and default instead of inheriting.
	resolveDir := func(keys ...string) string {
		return layered([]cm.ConfigList{roleCfg, groupCfg, svcCfg}, keys...)
	}
	resolve := func(keys ...string) string {
		return layered([]cm.ConfigList{roleCfg, groupCfg}, keys...)
	}

	dbDirs := resolveDir(ozone.KeyDBDirs)
	if dbDirs == "" {
		return cerr.Newf("%s is not set anywhere; cannot locate the database", ozone.KeyDBDirs)
	}
	// Multiple directories may be configured; the checkpoint lands in the
	// first one, same as the OM itself uses.
	e.plan.DBDir = strings.TrimSpace(strings.Split(dbDirs, ",")[0])
	e.plan.DBPath = strings.TrimRight(e.plan.DBDir, "/") + "/" + ozone.DBName

	e.plan.RatisDir = resolveDir(ozone.KeyRatisDir)
	if e.plan.RatisDir == "" {
		log.Warn("Ratis storage directory not configured, log phases will be skipped",
			zap.String("key", ozone.KeyRatisDir))
	}

	httpPort := resolve(ozone.KeyHTTPPort, ozone.KeyHTTPPortAlt)
	httpsPort := resolve(ozone.KeyHTTPSPort, ozone.KeyHTTPSPortAlt)
	ssl := isTrue(resolve(ozone.KeySSLEnabled))

	switch {
	case ssl && httpsPort != "":
		e.plan.Protocol, e.plan.Port = "https", httpsPort
	case httpPort != "":
		e.plan.Protocol, e.plan.Port = "http", httpPort
	default:
		e.plan.Protocol, e.plan.Port = "http", ozone.DefaultHTTPPort
	}

	e.plan.SecurityEnabled = isTrue(svcCfg.Get(ozone.KeySecurityEnabled))
	e.plan.HTTPKerberos = isTrue(svcCfg.Get(ozone.KeyHTTPKerberosEnabled))

	e.exec.SetSecurity(remote.Security{
		KerberosEnabled: e.plan.SecurityEnabled,
		Keytab:          e.plan.Keytab,
		Principal:       e.plan.Principal,
	})

	log.Info("Configuration resolved",
		zap.String("db_path", e.plan.DBPath),
		zap.String("ratis_dir", e.plan.RatisDir),
		zap.String("protocol", e.plan.Protocol),
		zap.String("port", e.plan.Port),
		zap.Bool("security_enabled", e.plan.SecurityEnabled),
		zap.Bool("http_kerberos", e.plan.HTTPKerberos))
	return nil
}

// baseGroupConfig fetches the config of the OM role config group,
// preferring the -BASE group when several exist.
func (e *Engine) baseGroupConfig(ctx context.Context) (cm.ConfigList, error) {
	topo := e.plan.Topology

	groups, err := e.api.RoleConfigGroups(ctx, topo.Cluster, topo.Service)
	if err != nil {
		return cm.ConfigList{}, cerr.Wrap(err, "listing role config groups")
	}

	var pick string
	for _, g := range groups {
		if g.Type() != ozone.RoleType {
			continue
		}
		if g.Base || strings.HasSuffix(g.Name, "-BASE") {
			pick = g.Name
			break
		}
		if pick == "" {
			pick = g.Name
		}
	}
	if pick == "" {
		return cm.ConfigList{}, nil
	}

	cfg, err := e.api.RoleConfigGroupConfig(ctx, topo.Cluster, topo.Service, pick, "full")
	if err != nil {
		return cm.ConfigList{}, cerr.Wrapf(err, "reading config group %s", pick)
	}
	return cfg, nil
}

func isTrue(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}
