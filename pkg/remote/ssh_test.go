// pkg/remote/ssh_test.go

package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemoteCommandPlain(t *testing.T) {
	e := NewSSHExecutor("root", "", 0, false)
	assert.Equal(t, "ls /tmp", e.RemoteCommand("ls /tmp"))
}

func TestRemoteCommandSudoWrap(t *testing.T) {
	e := NewSSHExecutor("opsadmin", "hdfs", 0, false)
	got := e.RemoteCommand("ls /var/lib/hadoop-ozone")
	assert.Equal(t, `sudo -u hdfs bash -c 'ls /var/lib/hadoop-ozone'`, got)
}

func TestRemoteCommandRootSkipsSudo(t *testing.T) {
	e := NewSSHExecutor("root", "hdfs", 0, false)
	assert.Equal(t, "ls /tmp", e.RemoteCommand("ls /tmp"))
}

func TestRemoteCommandKerberosPrefix(t *testing.T) {
	e := NewSSHExecutor("root", "", 0, false)
	e.SetSecurity(Security{
		KerberosEnabled: true,
		Keytab:          "/etc/security/keytabs/om.keytab",
		Principal:       "om/host1@EXAMPLE.COM",
	})
	got := e.RemoteCommand("ozone admin om roles -id=om-service")
	assert.Equal(t,
		"kinit -kt /etc/security/keytabs/om.keytab om/host1@EXAMPLE.COM && ozone admin om roles -id=om-service",
		got)
}

func TestRemoteCommandKerberosWithoutKeytab(t *testing.T) {
	e := NewSSHExecutor("root", "", 0, false)
	e.SetSecurity(Security{KerberosEnabled: true})
	got := e.RemoteCommand("ozone admin om roles -id=om-service")
	assert.Equal(t, "kinit && ozone admin om roles -id=om-service", got)
}

func TestRemoteCommandKerberosSkipsNonOzone(t *testing.T) {
	e := NewSSHExecutor("root", "", 0, false)
	e.SetSecurity(Security{KerberosEnabled: true, Keytab: "/etc/om.keytab"})
	assert.Equal(t, "pgrep -f 'foo'", e.RemoteCommand("pgrep -f 'foo'"))
}

func TestRemoteCommandKerberosInsideSudo(t *testing.T) {
	e := NewSSHExecutor("opsadmin", "hdfs", 0, false)
	e.SetSecurity(Security{KerberosEnabled: true, Keytab: "/etc/om.keytab"})
	got := e.RemoteCommand("ozone admin om roles")
	assert.Equal(t, `sudo -u hdfs bash -c 'kinit -kt /etc/om.keytab && ozone admin om roles'`, got)
}

func TestSSHArgs(t *testing.T) {
	e := NewSSHExecutor("opsadmin", "", 0, false)
	args := e.sshArgs("host1.example.com", "true", false)
	assert.Equal(t, []string{
		"-o", "StrictHostKeyChecking=no",
		"-l", "opsadmin",
		"host1.example.com", "true",
	}, args)
}

func TestSSHArgsBatchProbe(t *testing.T) {
	e := NewSSHExecutor("", "", 0, false)
	args := e.sshArgs("host1.example.com", "true", true)
	assert.Equal(t, []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=10",
		"host1.example.com", "true",
	}, args)
}

func TestShQuote(t *testing.T) {
	assert.Equal(t, `'echo '\''hi'\'''`, shQuote("echo 'hi'"))
}

func TestDefaultTimeoutApplied(t *testing.T) {
	e := NewSSHExecutor("root", "", 0, false)
	assert.Equal(t, 300*time.Second, e.Timeout)
}

func TestResultCombined(t *testing.T) {
	assert.Equal(t, "out\nerr", Result{Stdout: "out", Stderr: "err"}.Combined())
	assert.Equal(t, "out", Result{Stdout: "out"}.Combined())
	assert.Equal(t, "err", Result{Stderr: "err"}.Combined())
}
