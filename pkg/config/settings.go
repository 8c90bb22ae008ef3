// pkg/config/settings.go

package config

import (
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Settings are the operational tunables of a bootstrap run. Defaults match
// the production runbook; an optional settings file and OMBOOT_* environment
// variables may override them. Flags always win over both.
type Settings struct {
	APIVersion    string        `mapstructure:"api_version"`
	BackupRoot    string        `mapstructure:"backup_root"`
	SSHTimeout    time.Duration `mapstructure:"ssh_timeout"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
	StopInterval  time.Duration `mapstructure:"stop_interval"`
	StartTimeout  time.Duration `mapstructure:"start_timeout"`
	StartInterval time.Duration `mapstructure:"start_interval"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
}

// Defaults returns the built-in settings without consulting file or env.
func Defaults() Settings {
	return Settings{
		APIVersion:    "v49",
		BackupRoot:    "/backup",
		SSHTimeout:    300 * time.Second,
		ProbeTimeout:  15 * time.Second,
		StopTimeout:   120 * time.Second,
		StopInterval:  5 * time.Second,
		StartTimeout:  180 * time.Second,
		StartInterval: 10 * time.Second,
		SettleDelay:   30 * time.Second,
	}
}

// Load resolves settings from the optional file at path (empty means no
// file) plus OMBOOT_* environment overrides.
func Load(path string) (Settings, error) {
	v := viper.New()
	def := Defaults()
	v.SetDefault("api_version", def.APIVersion)
	v.SetDefault("backup_root", def.BackupRoot)
	v.SetDefault("ssh_timeout", def.SSHTimeout)
	v.SetDefault("probe_timeout", def.ProbeTimeout)
	v.SetDefault("stop_timeout", def.StopTimeout)
	v.SetDefault("stop_interval", def.StopInterval)
	v.SetDefault("start_timeout", def.StartTimeout)
	v.SetDefault("start_interval", def.StartInterval)
	v.SetDefault("settle_delay", def.SettleDelay)

	v.SetEnvPrefix("OMBOOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, cerr.Wrapf(err, "failed to read settings file %s", path)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, cerr.Wrap(err, "failed to parse settings")
	}
	return s, nil
}
