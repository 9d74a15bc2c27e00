package shim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const configFilename = "config.json"

// The OCI bundle fields we care about. Everything else in config.json is
// ignored.
type bundleRoot struct {
	// Path is the path to the rootfs
	Path string `json:"path"`
}

type bundleProcess struct {
	// Args is the entrypoint script plus optional interpreter flags
	Args []string `json:"args"`
	// Env is the environment variables to set
	Env []string `json:"env"`
}

type bundleConfig struct {
	Root    bundleRoot    `json:"root"`
	Process bundleProcess `json:"process"`
}

// Config is the parsed and validated bundle configuration.
type Config struct {
	Root       string
	Entrypoint string
	Path       []string

	// Interpreter options requested by the bundle
	CharOutput bool
	Verbose    bool
}

// ReadConfig reads and validates the bundle's config.json at path. The
// process args must name exactly one .bf/.brainfuck script, optionally
// followed by the interpreter flags -c and -v.
func ReadConfig(path string) (*Config, error) {
	filePath := filepath.Join(path, configFilename)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found", configFilename)
		}
		return nil, err
	}

	var raw bundleConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configFilename, err)
	}

	if raw.Root.Path == "" {
		return nil, fmt.Errorf("root path not found in config file %s", configFilename)
	}

	if len(raw.Process.Args) == 0 {
		return nil, fmt.Errorf("no entrypoint in the CMD of config file %s", configFilename)
	}

	entrypoint := raw.Process.Args[0]
	if ext := filepath.Ext(entrypoint); ext != ".bf" && ext != ".brainfuck" {
		return nil, fmt.Errorf("entry point (%s) is not a .bf file", entrypoint)
	}

	config := &Config{
		Root:       raw.Root.Path,
		Entrypoint: entrypoint,
	}

	for _, arg := range raw.Process.Args[1:] {
		switch arg {
		case "-c", "--char":
			config.CharOutput = true
		case "-v", "--verbose":
			config.Verbose = true
		default:
			return nil, fmt.Errorf("unknown argument %q in the CMD", arg)
		}
	}

	// check if the script exists
	script := filepath.Join(config.Root, config.Entrypoint)
	if _, err := os.Stat(script); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %s does not exist: %w", entrypoint, err)
		}
		return nil, fmt.Errorf("checking script %s: %w", entrypoint, err)
	}

	for _, env := range raw.Process.Env {
		if strings.HasPrefix(env, "PATH=") {
			config.Path = strings.Split(strings.TrimPrefix(env, "PATH="), ":")
			break
		}
	}

	return config, nil
}

// FullPath is the absolute path of the entrypoint script inside the rootfs.
func (c *Config) FullPath() string {
	return filepath.Join(c.Root, c.Entrypoint)
}

// InterpreterArgs is the argument list for re-exec'ing the shim binary in
// plain interpreter mode against this bundle.
func (c *Config) InterpreterArgs() []string {
	args := []string{"brainfuck", "-file", c.FullPath()}
	if c.CharOutput {
		args = append(args, "-char")
	}
	if c.Verbose {
		args = append(args, "-verbose")
	}
	return args
}
