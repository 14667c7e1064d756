package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout      io.Writer = os.Stdout
	stdin       io.Reader = os.Stdin
	parseConfig           = config.Parse
	writeConfig           = config.Write
)

type cliOpts struct {
	sourceDir, sharedDir, destDir string
}

// New creates a new `config` command.
func New() *cobra.Command {
	var opts cliOpts
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the dirsync configuration",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := SetupConfig(util.ConfigPath(cmd), opts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&opts.sourceDir, "source-dir", "",
		"Set the sender's source directory in the config. "+
			"Optional: If not set, `dirsync config` will interactively prompt.")
	cmd.Flags().StringVar(&opts.sharedDir, "shared-dir", "",
		"Set the shared directory for both agents in the config. "+
			"Optional: If not set, `dirsync config` will interactively prompt.")
	cmd.Flags().StringVar(&opts.destDir, "dest-dir", "",
		"Set the receiver's destination directory in the config. "+
			"Optional: If not set, `dirsync config` will interactively prompt.")

	// Setup the commands for querying the contents of the config.
	type getterSpec struct {
		use, short string
		fn         func(config.Config) string
	}

	getters := []getterSpec{
		{
			use:   "get-source-dir",
			short: "Get the directory the sender publishes from",
			fn:    func(cfg config.Config) string { return cfg.Sender.SourceDir },
		},
		{
			use:   "get-shared-dir",
			short: "Get the shared directory the receiver ingests from",
			fn:    func(cfg config.Config) string { return cfg.Receiver.SharedDir },
		},
		{
			use:   "get-dest-dir",
			short: "Get the directory the receiver copies into",
			fn:    func(cfg config.Config) string { return cfg.Receiver.DestDir },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(cmd *cobra.Command, _ []string) {
				cfg, err := loadConfig(util.ConfigPath(cmd))
				if err != nil {
					util.HandleFatalError(errors.WithContext(err, "read config"))
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, including defaults",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := showConfig(util.ConfigPath(cmd)); err != nil {
				util.HandleFatalError(err)
			}
		},
	})

	return cmd
}

// loadConfig parses the config at `path`, falling back to the defaults if it
// doesn't exist.
func loadConfig(path string) (config.Config, error) {
	cfg, err := parseConfig(path)
	if err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); ok {
			return config.Defaults(), nil
		}
		return config.Config{}, err
	}
	return cfg, nil
}

func showConfig(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return errors.WithContext(err, "read config")
	}
	cfg.Version = config.SupportedConfigVersion

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}
	_, err = stdout.Write(yamlBytes)
	return err
}

// SetupConfig prompts for any directories not set in `opts`, and writes the
// result to `path`.
func SetupConfig(path string, opts cliOpts) error {
	cfg, err := generateConfig(path, opts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeConfig(path, cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func dirValidationFn(dir string) (string, bool) {
	if strings.TrimSpace(dir) == "" {
		return "The directory must not be empty. Please enter a path.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	fields                                        []*string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is. Settings that aren't prompted for, such as the poll
// interval, are carried over from the current config.
func generateConfig(path string, opts cliOpts) (config.Config, error) {
	defaults := config.Defaults()
	currConfig, err := parseConfig(path)
	if err != nil {
		log.WithError(err).Debug("Failed to read current config")
		currConfig = defaults
	}

	cfg := currConfig
	var prompts []prompt

	if opts.sourceDir != "" {
		cfg.Sender.SourceDir = opts.sourceDir
	} else {
		prompts = append(prompts, prompt{
			helpString: "Enter the directory that the sender watches for new files.\n" +
				"Each new, non-empty file is copied into the shared directory.",
			prompt:        "Source directory",
			defaultAnswer: defaults.Sender.SourceDir,
			currAnswer:    currConfig.Sender.SourceDir,
			fields:        []*string{&cfg.Sender.SourceDir},
			validationFn:  dirValidationFn,
		})
	}

	if opts.sharedDir != "" {
		cfg.Sender.SharedDir = opts.sharedDir
		cfg.Receiver.SharedDir = opts.sharedDir
	} else {
		prompts = append(prompts, prompt{
			helpString: "Enter the shared directory.\n" +
				"Both the sender and the receiver must be able to access it, " +
				"usually through a shared volume.",
			prompt:        "Shared directory",
			defaultAnswer: defaults.Receiver.SharedDir,
			currAnswer:    currConfig.Receiver.SharedDir,
			fields:        []*string{&cfg.Sender.SharedDir, &cfg.Receiver.SharedDir},
			validationFn:  dirValidationFn,
		})
	}

	if opts.destDir != "" {
		cfg.Receiver.DestDir = opts.destDir
	} else {
		prompts = append(prompts, prompt{
			helpString:    "Enter the directory that the receiver copies new files into.",
			prompt:        "Destination directory",
			defaultAnswer: defaults.Receiver.DestDir,
			currAnswer:    currConfig.Receiver.DestDir,
			fields:        []*string{&cfg.Receiver.DestDir},
			validationFn:  dirValidationFn,
		})
	}

	// All prompts share a reader so that input buffered for one prompt isn't
	// lost to the next.
	stdinReader := bufio.NewReader(stdin)
	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(stdinReader, prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.Config{}, errors.WithContext(err, "read response")
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		for _, field := range prompt.fields {
			*field = resp
		}
	}

	return cfg, nil
}

func promptUser(stdinReader *bufio.Reader, helpString, prompt, defaultAnswer,
	currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	if nOptions := len(options); nOptions > 1 {
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					continue
				}
			}

			if choice == nOptions {
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
