// pkg/bootstrap/orchestrator_test.go

package bootstrap

import (
	"context"
	"strings"
	"testing"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/cm"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/config"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

const defaultRolesText = `
om1 : FOLLOWER (host1.example.com)
om2 : LEADER (host2.example.com)
om3 : FOLLOWER (host3.example.com)
`

// fakeAPI serves a canned three-OM cluster.
type fakeAPI struct {
	svcCfg   cm.ConfigList
	roleCfg  cm.ConfigList
	groupCfg cm.ConfigList

	roleCommands  []string
	onRoleCommand func(command string)

	waitedCommands []int64
	onWaitCommand  func(id int64) (cm.Command, error)
}

func (f *fakeAPI) ListClusters(ctx context.Context) ([]cm.Cluster, error) {
	return []cm.Cluster{{Name: "prod", DisplayName: "Production"}}, nil
}

func (f *fakeAPI) ListServices(ctx context.Context, cluster string) ([]cm.Service, error) {
	return []cm.Service{
		{Name: "hdfs1", Type: "HDFS"},
		{Name: "ozone1", Type: "OZONE"},
	}, nil
}

func (f *fakeAPI) ListRoles(ctx context.Context, cluster, service string) ([]cm.Role, error) {
	return []cm.Role{
		{Name: "ozone1-OZONE_MANAGER-1", Type: "OZONE_MANAGER", HostRef: cm.HostRef{HostID: "id-1"}},
		{Name: "ozone1-OZONE_MANAGER-2", Type: "OZONE_MANAGER", HostRef: cm.HostRef{HostID: "id-2"}},
		{Name: "ozone1-OZONE_MANAGER-3", Type: "OZONE_MANAGER", HostRef: cm.HostRef{HostID: "id-3"}},
		{Name: "ozone1-GATEWAY-1", Type: "GATEWAY", HostRef: cm.HostRef{HostID: "id-1"}},
	}, nil
}

func (f *fakeAPI) ServiceConfig(ctx context.Context, cluster, service, view string) (cm.ConfigList, error) {
	return f.svcCfg, nil
}

func (f *fakeAPI) RoleConfig(ctx context.Context, cluster, service, role, view string) (cm.ConfigList, error) {
	return f.roleCfg, nil
}

func (f *fakeAPI) RoleConfigGroups(ctx context.Context, cluster, service string) ([]cm.RoleConfigGroup, error) {
	return []cm.RoleConfigGroup{
		{Name: "ozone1-OZONE_MANAGER-BASE", RoleType: "OZONE_MANAGER", Base: true},
	}, nil
}

func (f *fakeAPI) RoleConfigGroupConfig(ctx context.Context, cluster, service, group, view string) (cm.ConfigList, error) {
	return f.groupCfg, nil
}

func (f *fakeAPI) RoleCommand(ctx context.Context, cluster, service, command string, roleNames []string) ([]cm.Command, error) {
	f.roleCommands = append(f.roleCommands, command)
	if f.onRoleCommand != nil {
		f.onRoleCommand(command)
	}
	return []cm.Command{{ID: 1, Name: command, Active: true}}, nil
}

func (f *fakeAPI) WaitForCommand(ctx context.Context, id int64, timeout, interval time.Duration) (cm.Command, error) {
	f.waitedCommands = append(f.waitedCommands, id)
	if f.onWaitCommand != nil {
		return f.onWaitCommand(id)
	}
	return cm.Command{ID: id, Success: true}, nil
}

func (f *fakeAPI) Host(ctx context.Context, hostID string) (cm.Host, error) {
	hosts := map[string]cm.Host{
		"id-1": {HostID: "id-1", Hostname: "host1.example.com"},
		"id-2": {HostID: "id-2", Hostname: "host2.example.com"},
		"id-3": {HostID: "id-3", Hostname: "host3.example.com"},
	}
	h, ok := hosts[hostID]
	if !ok {
		return cm.Host{}, cerr.Newf("no host %s", hostID)
	}
	return h, nil
}

func (f *fakeAPI) BaseHost() (string, error) { return "cm.example.com", nil }

type execCall struct {
	Host        string
	Command     string
	WriteIntent bool
}

// fakeExec records every call and answers through a scriptable handler.
// Write-intent commands that actually reach the handler are tracked
// separately so dry-run tests can assert nothing mutating ran.
type fakeExec struct {
	dryRun bool

	calls          []execCall
	executedWrites []string
	handler        func(host, command string) (remote.Result, error)
	probeErr       map[string]error
	sudoErr        error

	sec      remote.Security
	sudoUser string
}

func (f *fakeExec) Run(ctx context.Context, host, command string, opts ...remote.RunOption) (remote.Result, error) {
	cfg := remote.ApplyOptions(opts...)
	f.calls = append(f.calls, execCall{Host: host, Command: command, WriteIntent: cfg.WriteIntent})
	if f.dryRun && cfg.WriteIntent {
		return remote.Result{}, nil
	}
	if cfg.WriteIntent {
		f.executedWrites = append(f.executedWrites, command)
	}
	if f.handler == nil {
		return remote.Result{}, nil
	}
	return f.handler(host, command)
}

func (f *fakeExec) Probe(ctx context.Context, host string) error {
	if f.probeErr == nil {
		return nil
	}
	return f.probeErr[host]
}

func (f *fakeExec) ProbeSudo(ctx context.Context, host, sudoUser string) error { return f.sudoErr }
func (f *fakeExec) SetSecurity(sec remote.Security)                            { f.sec = sec }
func (f *fakeExec) SetSudoUser(user string)                                    { f.sudoUser = user }

func (f *fakeExec) commandRan(substr string) bool {
	for _, c := range f.calls {
		if strings.Contains(c.Command, substr) {
			return true
		}
	}
	return false
}

type fakePrompter struct {
	answers []string
}

func (f *fakePrompter) Input(prompt string) (string, error) {
	if len(f.answers) == 0 {
		return "", cerr.New("no scripted answer")
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

// fixture wires a healthy three-OM cluster with host1 as the lagging
// follower and host2 leading.
type fixture struct {
	api     *fakeAPI
	exec    *fakeExec
	prompt  *fakePrompter
	running bool

	rolesText string
}

func newFixture() *fixture {
	fx := &fixture{
		api: &fakeAPI{
			svcCfg: configList(map[string]string{
				"ozone.service.id": "om-service",
			}),
			roleCfg: configList(map[string]string{
				"ozone.om.db.dirs":           "/var/lib/hadoop-ozone/om/data",
				"ozone.om.ratis.storage.dir": "/var/lib/hadoop-ozone/om/ratis",
				"ozone.om.http-port":         "9874",
			}),
		},
		exec:      &fakeExec{},
		prompt:    &fakePrompter{answers: []string{"Continue"}},
		running:   true,
		rolesText: defaultRolesText,
	}
	fx.api.onRoleCommand = func(command string) {
		switch command {
		case "stop":
			fx.running = false
		case "start":
			fx.running = true
		}
	}
	fx.exec.handler = fx.handle
	return fx
}

func configList(items map[string]string) cm.ConfigList {
	var list cm.ConfigList
	for name, value := range items {
		list.Items = append(list.Items, cm.ConfigItem{Name: name, Value: value})
	}
	return list
}

func (fx *fixture) handle(host, command string) (remote.Result, error) {
	switch {
	case strings.Contains(command, "pgrep"):
		if fx.running {
			return remote.Result{ExitCode: 0, Stdout: "12345"}, nil
		}
		return remote.Result{ExitCode: 1}, nil
	case strings.HasPrefix(command, "mktemp"):
		return remote.Result{Stdout: "/tmp/om_bootstrap_test"}, nil
	case strings.Contains(command, "grep -il"):
		return remote.Result{ExitCode: 1}, nil
	case strings.Contains(command, "getserviceroles"),
		strings.HasPrefix(command, "ozone admin om roles"):
		return remote.Result{Stdout: fx.rolesText}, nil
	case strings.HasPrefix(command, "ozone getconf"):
		return remote.Result{Stdout: "om-service"}, nil
	case strings.Contains(command, "-name current"):
		return remote.Result{Stdout: "/var/lib/hadoop-ozone/om/ratis/group/current"}, nil
	case strings.Contains(command, "log_*"):
		return remote.Result{Stdout: "100.0 /var/lib/hadoop-ozone/om/ratis/group/current/log_0_7"}, nil
	default:
		return remote.Result{}, nil
	}
}

func testSettings() config.Settings {
	s := config.Defaults()
	s.SSHTimeout = time.Second
	s.StopTimeout = 100 * time.Millisecond
	s.StopInterval = 10 * time.Millisecond
	s.StartTimeout = 200 * time.Millisecond
	s.StartInterval = 10 * time.Millisecond
	s.SettleDelay = time.Millisecond
	return s
}

func newEngine(fx *fixture, opts Options) *Engine {
	if opts.Cluster == "" {
		opts.Cluster = "prod"
	}
	if opts.TargetHost == "" {
		opts.TargetHost = "host1.example.com"
	}
	if opts.SSHUser == "" {
		opts.SSHUser = "root"
	}
	return New(fx.api, fx.exec, fx.prompt, testSettings(), opts)
}

func TestRunHappyPath(t *testing.T) {
	fx := newFixture()
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"stop", "start"}, fx.api.roleCommands)

	db := "/var/lib/hadoop-ozone/om/data/om.db"
	wantOrder := []string{
		"mktemp -d",
		"curl -k -sS -f -o /tmp/om_bootstrap_test/om-db-checkpoint.tar",
		"tar -xf /tmp/om_bootstrap_test/om-db-checkpoint.tar",
		"cp -r " + db,
		"mv " + db + " " + db + ".backup.",
		"mv " + db + ".tmp_",
		"chown -R hdfs:hdfs " + db,
		"rm -rf /tmp/om_bootstrap_test",
	}
	idx := -1
	for _, want := range wantOrder {
		found := -1
		for i, c := range fx.exec.calls {
			if i > idx && strings.Contains(c.Command, want) {
				found = i
				break
			}
		}
		require.GreaterOrEqual(t, found, 0, "expected %q after call %d", want, idx)
		idx = found
	}

	plan := e.Plan()
	assert.Equal(t, "host2.example.com", plan.Leader)
	assert.Equal(t, db, plan.DBPath)
	assert.Equal(t, "http", plan.Protocol)
	assert.Equal(t, "9874", plan.Port)
}

func TestRunDryRunExecutesNothingMutating(t *testing.T) {
	fx := newFixture()
	fx.exec.dryRun = true
	fx.prompt.answers = nil // no confirmation needed
	e := newEngine(fx, Options{DryRun: true})

	err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fx.exec.executedWrites)
	assert.Empty(t, fx.api.roleCommands)
}

func TestRunRejectsBootstrappingTheLeader(t *testing.T) {
	fx := newFixture()
	e := newEngine(fx, Options{TargetHost: "host2.example.com"})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current leader")
	assert.True(t, omboot_err.IsExpectedUserError(err))
	assert.Empty(t, fx.api.roleCommands)
	assert.Empty(t, fx.exec.executedWrites)
}

func TestRunRejectsTargetOutsideConsensusGroup(t *testing.T) {
	fx := newFixture()
	fx.rolesText = `
om2 : LEADER (host2.example.com)
om3 : FOLLOWER (host3.example.com)
`
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a follower")
	assert.Empty(t, fx.api.roleCommands)
	assert.Empty(t, fx.exec.executedWrites)
}

func TestRunAbortsOnErrorTextInCheckpoint(t *testing.T) {
	fx := newFixture()
	base := fx.handle
	fx.exec.handler = func(host, command string) (remote.Result, error) {
		if strings.Contains(command, "grep -il") {
			return remote.Result{ExitCode: 0, Stdout: "/tmp/om_bootstrap_test/om-db-checkpoint.tar"}, nil
		}
		return base(host, command)
	}
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error text")

	db := "/var/lib/hadoop-ozone/om/data/om.db"
	assert.False(t, fx.exec.commandRan("mv "+db), "database must not be touched")

	// The target was stopped before the abort; cleanup must restart it.
	assert.Equal(t, []string{"stop", "start"}, fx.api.roleCommands)
	assert.True(t, fx.running)
	assert.True(t, fx.exec.commandRan("rm -rf /tmp/om_bootstrap_test"))
}

func TestRunAbortsWhenCheckpointScanFails(t *testing.T) {
	fx := newFixture()
	base := fx.handle
	fx.exec.handler = func(host, command string) (remote.Result, error) {
		if strings.Contains(command, "grep -il") {
			return remote.Result{ExitCode: 2, Stderr: "grep: om-db-checkpoint.tar: Permission denied"}, nil
		}
		return base(host, command)
	}
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan")
	assert.False(t, fx.exec.commandRan("mv /var/lib/hadoop-ozone/om/data/om.db"))
}

func TestRunAbortsOnInvalidTar(t *testing.T) {
	fx := newFixture()
	base := fx.handle
	fx.exec.handler = func(host, command string) (remote.Result, error) {
		if strings.Contains(command, "tar -tf") {
			return remote.Result{ExitCode: 2, Stderr: "tar: This does not look like a tar archive"}, nil
		}
		return base(host, command)
	}
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid tar")
	assert.False(t, fx.exec.commandRan("mv /var/lib/hadoop-ozone/om/data/om.db"))
}

func TestRunToleratesStopTimeout(t *testing.T) {
	fx := newFixture()
	// Stop command never kills the process; the run must carry on.
	fx.api.onRoleCommand = func(command string) {}

	e := newEngine(fx, Options{})
	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "start"}, fx.api.roleCommands)
}

func TestEndpointSettingsIgnoreServiceConfig(t *testing.T) {
	fx := newFixture()
	// Directories inherit from service config; the port must not, so a
	// stray service-level port yields the role default instead.
	fx.api.roleCfg = cm.ConfigList{}
	fx.api.svcCfg = configList(map[string]string{
		"ozone.service.id":           "om-service",
		"ozone.om.db.dirs":           "/data/ozone/om",
		"ozone.om.ratis.storage.dir": "/data/ozone/ratis",
		"ozone.om.http-port":         "12345",
	})
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.NoError(t, err)

	plan := e.Plan()
	assert.Equal(t, "/data/ozone/om/om.db", plan.DBPath)
	assert.Equal(t, "/data/ozone/ratis", plan.RatisDir)
	assert.Equal(t, "http", plan.Protocol)
	assert.Equal(t, "9874", plan.Port)
}

func TestCleanupIsRepeatSafe(t *testing.T) {
	fx := newFixture()
	base := fx.handle
	fx.exec.handler = func(host, command string) (remote.Result, error) {
		if strings.Contains(command, "tar -xf") {
			return remote.Result{ExitCode: 2, Stderr: "tar: Unexpected EOF in archive"}, nil
		}
		return base(host, command)
	}
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)

	removals := func() int {
		n := 0
		for _, c := range fx.exec.calls {
			if strings.Contains(c.Command, "rm -rf /tmp/om_bootstrap_test") {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, removals())
	assert.Equal(t, []string{"stop", "start"}, fx.api.roleCommands)
	assert.True(t, fx.running)

	// Running cleanup again on the same state must do nothing further.
	e.cleanup(context.Background(), &err)
	assert.Equal(t, 1, removals())
	assert.Equal(t, []string{"stop", "start"}, fx.api.roleCommands)
}

func TestStopStartAwaitManagementCommands(t *testing.T) {
	fx := newFixture()
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1}, fx.api.waitedCommands)
}

func TestRunToleratesCommandPollFailure(t *testing.T) {
	fx := newFixture()
	fx.api.onWaitCommand = func(id int64) (cm.Command, error) {
		return cm.Command{}, cerr.New("command 1 still active after 100ms")
	}
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "start"}, fx.api.roleCommands)
}

func TestRunFailsOverToHealthyPeer(t *testing.T) {
	fx := newFixture()
	transferred := false
	base := fx.handle
	fx.exec.handler = func(host, command string) (remote.Result, error) {
		switch {
		case strings.Contains(command, "getserviceroles") && host == "host2.example.com":
			return remote.Result{ExitCode: 1, Stderr: "connection refused"}, nil
		case strings.HasPrefix(command, "ozone admin om transfer"):
			transferred = true
			fx.rolesText = `
om1 : FOLLOWER (host1.example.com)
om2 : FOLLOWER (host2.example.com)
om3 : LEADER (host3.example.com)
`
			return remote.Result{}, nil
		default:
			return base(host, command)
		}
	}

	e := newEngine(fx, Options{})
	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, transferred)
	assert.Equal(t, "host3.example.com", e.Plan().Leader)
}

func TestRunAbortsOnWrongConfirmation(t *testing.T) {
	fx := newFixture()
	fx.prompt.answers = []string{"yes"}
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, omboot_err.IsExpectedUserError(err))
	assert.Empty(t, fx.api.roleCommands)
	assert.Empty(t, fx.exec.executedWrites)
}

func TestRunAbortsOnUnreachableHost(t *testing.T) {
	fx := newFixture()
	fx.exec.probeErr = map[string]error{
		"host3.example.com": cerr.New("connection timed out"),
	}
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, omboot_err.IsExpectedUserError(err))
	assert.Empty(t, fx.exec.executedWrites)
}

func TestRunRequiresKerberosCredentials(t *testing.T) {
	fx := newFixture()
	fx.api.svcCfg = configList(map[string]string{
		"ozone.service.id":       "om-service",
		"ozone.security.enabled": "true",
	})
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--keytab")
	assert.True(t, omboot_err.IsExpectedUserError(err))
	assert.Empty(t, fx.exec.executedWrites)
}

func TestSecurityPostureReachesExecutor(t *testing.T) {
	fx := newFixture()
	fx.api.svcCfg = configList(map[string]string{
		"ozone.service.id":       "om-service",
		"ozone.security.enabled": "true",
	})
	e := newEngine(fx, Options{
		Keytab:    "/etc/security/keytabs/om.keytab",
		Principal: "om/admin@EXAMPLE.COM",
	})

	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, fx.exec.sec.KerberosEnabled)
	assert.Equal(t, "/etc/security/keytabs/om.keytab", fx.exec.sec.Keytab)
}

func TestRunSkipsLeadershipTestByDefault(t *testing.T) {
	fx := newFixture()
	e := newEngine(fx, Options{})

	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, fx.exec.commandRan("transfer"))
}

func TestLeadershipTestTransfersToTarget(t *testing.T) {
	fx := newFixture()
	base := fx.handle
	fx.exec.handler = func(host, command string) (remote.Result, error) {
		if strings.HasPrefix(command, "ozone admin om transfer") {
			fx.rolesText = `
om1 : LEADER (host1.example.com)
om2 : FOLLOWER (host2.example.com)
om3 : FOLLOWER (host3.example.com)
`
			return remote.Result{}, nil
		}
		return base(host, command)
	}

	e := newEngine(fx, Options{LeadershipTest: true})
	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, fx.exec.commandRan("transfer -id=om-service -n om1"))
}
