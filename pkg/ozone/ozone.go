// pkg/ozone/ozone.go

// Package ozone holds the Ozone-specific knowledge the bootstrap workflow
// depends on: configuration key names, the OM process signature, the
// checkpoint endpoint contract, and the parser for `ozone admin om` roles
// output. Everything here is pure; no I/O.
package ozone

import "fmt"

const (
	// ServiceType and RoleType are the management-plane type identifiers.
	ServiceType = "OZONE"
	RoleType    = "OZONE_MANAGER"

	// ProcessSignature is the JVM main class pgrep matches to confirm the
	// OM process is actually up or down, independent of what the
	// management plane believes.
	ProcessSignature = "org.apache.hadoop.ozone.om.OzoneManagerStarter"

	// DefaultHTTPPort is the documented OM web port used when no port is
	// resolvable from configuration.
	DefaultHTTPPort = "9874"

	// CheckpointFileName is the artifact name inside the run's temp dir.
	CheckpointFileName = "om-db-checkpoint.tar"

	// DBName is the RocksDB directory name under the OM data directory.
	DBName = "om.db"
)

// Configuration keys read from the management plane. The dotted port
// variants appear on some releases.
const (
	KeyDBDirs              = "ozone.om.db.dirs"
	KeyRatisDir            = "ozone.om.ratis.storage.dir"
	KeyHTTPPort            = "ozone.om.http-port"
	KeyHTTPSPort           = "ozone.om.https-port"
	KeyHTTPPortAlt         = "ozone.om.http.port"
	KeyHTTPSPortAlt        = "ozone.om.https.port"
	KeySSLEnabled          = "ssl_enabled"
	KeyServiceID           = "ozone.service.id"
	KeySecurityEnabled     = "ozone.security.enabled"
	KeyHTTPKerberosEnabled = "ozone.security.http.kerberos.enabled"
)

// RolesCommand inspects the consensus group membership.
func RolesCommand(serviceID string) string {
	if serviceID == "" {
		return "ozone admin om roles"
	}
	return fmt.Sprintf("ozone admin om roles -id=%s", serviceID)
}

// ServiceRolesCommand is the lightweight read used for health probes and
// node-ID discovery.
func ServiceRolesCommand(serviceID string) string {
	return fmt.Sprintf("ozone admin om getserviceroles --service-id=%s", serviceID)
}

// TransferLeadershipCommand moves Ratis leadership to the given node.
func TransferLeadershipCommand(serviceID, nodeID string) string {
	return fmt.Sprintf("ozone admin om transfer -id=%s -n %s", serviceID, nodeID)
}

// GetConfCommand reads one configuration key through the ozone CLI.
func GetConfCommand(key string) string {
	return fmt.Sprintf("ozone getconf -confKey %s", key)
}

// ProcessCheckCommand reports exit 0 iff the OM process is running.
func ProcessCheckCommand() string {
	return fmt.Sprintf("pgrep -f '%s'", ProcessSignature)
}

// CheckpointURL is the leader endpoint serving a flushed RocksDB snapshot
// as a tar stream.
func CheckpointURL(protocol, host, port string) string {
	return fmt.Sprintf("%s://%s:%s/dbCheckpoint?flushBeforeCheckpoint=true", protocol, host, port)
}

// CheckpointProbeURL is the same endpoint without the flush parameter, used
// for the pre-download HEAD test.
func CheckpointProbeURL(protocol, host, port string) string {
	return fmt.Sprintf("%s://%s:%s/dbCheckpoint", protocol, host, port)
}
