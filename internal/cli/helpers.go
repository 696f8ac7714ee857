package cli

import (
	"os"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/config"
	"github.com/daydemir/vhostdoctor/internal/display"
	"github.com/daydemir/vhostdoctor/internal/logging"
	"github.com/daydemir/vhostdoctor/internal/state"
	"github.com/daydemir/vhostdoctor/internal/utils"
	"github.com/daydemir/vhostdoctor/internal/workspace"
)

// env is what every command needs: config, logger, output
type env struct {
	wsDir   string
	cfgPath string
	cfg     *config.Config
	logger  *logging.Logger
	display *display.Display
}

// loadEnv resolves the workspace, loads config and opens the log
func loadEnv() (*env, error) {
	wsDir, err := workspace.Resolve()
	if err != nil {
		return nil, err
	}
	path := cfgFile
	if path == "" {
		path = workspace.ConfigPath(wsDir)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	return &env{
		wsDir:   wsDir,
		cfgPath: path,
		cfg:     cfg,
		logger:  logger,
		display: display.NewWithOptions(os.Stdout, noColor),
	}, nil
}

func (e *env) Close() error {
	return e.logger.Close()
}

func (e *env) store() (*state.Store, error) {
	return state.NewStore(e.cfg.State.Dir, e.logger.Logger)
}

// domainArg normalizes a domain argument and rejects obvious garbage
func domainArg(arg string) (string, error) {
	domain := utils.NormalizeDomain(arg)
	if domain == "" || strings.ContainsAny(domain, " /\t;{}") || !strings.Contains(domain, ".") {
		return "", &usageError{msg: "invalid domain: " + arg}
	}
	return domain, nil
}
