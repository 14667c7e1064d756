package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/dirsync/pkg/errors"
)

// parseConfigErrTemplate is shown when the config file isn't valid YAML, or
// doesn't match the schema. The parser's error is included verbatim since it
// usually names the offending field.
const parseConfigErrTemplate = "The dirsync config %q could not be parsed.\n" +
	"Check that:\n" +
	" - Directories are strings, and pollInterval is a duration such as \"500ms\"\n" +
	" - There are no fields besides version, sender and receiver\n" +
	"Run `dirsync config show` to see a valid config.\n\n" +
	"Parser error:\n" +
	"%s"

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The dirsync config %q has version %q, but this "+
		"version of dirsync only reads %q.", err.path, err.actual, err.exp)
}

// readConfig reads the YAML at `path` over `cfg`, so fields missing from the
// file keep their current values.
func readConfig(path string, cfg *Config) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if cfg.Version == "" {
		cfg.Version = InitialConfigVersion
	}
	if cfg.Version != SupportedConfigVersion {
		return incompatibleVersionError{path, SupportedConfigVersion, cfg.Version}
	}

	// Unknown fields are only rejected after the version check, so that a
	// config for a newer schema is reported as a version mismatch.
	err = yaml.UnmarshalStrict(configBytes, cfg, yaml.DisallowUnknownFields)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}
