// Package rsyncdconfig parses the TOML configuration file for the rsync
// daemon: which addresses to listen on and which modules to serve. Parsing
// itself lives here so maincmd only depends on the resulting Config/Listener
// structs.
package rsyncdconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-rsync/rsync/rsyncd"
)

// defaultConfigPaths are tried, in order, when no -gokr.config flag is set.
var defaultConfigPaths = []string{
	"/etc/gokr-rsyncd.toml",
	"gokr-rsyncd.toml",
}

// AuthorizedSSHListener configures an SSH listener that only accepts
// connections authenticated against AuthorizedKeys.
type AuthorizedSSHListener struct {
	Address        string `toml:"address"`
	AuthorizedKeys string `toml:"authorized_keys"`
}

// Listener is one [[listener]] table in the config file. Exactly one of
// Rsyncd, AnonSSH or AuthorizedSSH.Address should be set.
type Listener struct {
	Rsyncd        string                `toml:"rsyncd"`
	AnonSSH       string                `toml:"anonssh"`
	AuthorizedSSH AuthorizedSSHListener `toml:"authorized_ssh"`
}

// Config is the top-level shape of a gokr-rsyncd.toml file.
type Config struct {
	DontNamespace bool              `toml:"dont_namespace"`
	Listeners     []Listener        `toml:"listener"`
	Modules       []rsyncd.Module   `toml:"module"`
}

// FromFile reads and parses the config file at path.
func FromFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %v", path, err)
	}
	return &cfg, nil
}

// FromDefaultFiles tries each of defaultConfigPaths in turn, returning the
// first one that exists. The returned error is os.IsNotExist-compatible when
// none of the default paths exist, matching the caller's "no config file, use
// flags instead" fallback.
func FromDefaultFiles() (cfg *Config, path string, err error) {
	for _, candidate := range defaultConfigPaths {
		if _, statErr := os.Stat(candidate); statErr != nil {
			if os.IsNotExist(statErr) {
				err = statErr
				continue
			}
			return nil, "", statErr
		}
		cfg, err = FromFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}
	return nil, "", err
}
