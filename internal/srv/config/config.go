package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const paramFilename = "param.yaml"
const stateFilename = "state.yaml"
const envFilename = ".env"

type ServerConfig struct {
	ConfigDir string
	DebugMode bool

	*ServerParam
	*ServerState
}

func NewServerConfig(configDir string, debugMode bool) *ServerConfig {
	serverConfig, err := LoadServerConfig(configDir, debugMode)
	if err != nil {
		logrus.Fatalf("Unable to load configuration: %v\n", err)
	}
	return serverConfig
}

// LoadServerConfig reads param.yaml and state.yaml from configDir, creating both
// when missing, then applies environment overrides.
func LoadServerConfig(configDir string, debugMode bool) (*ServerConfig, error) {
	serverConfig := &ServerConfig{
		ConfigDir: configDir,
		DebugMode: debugMode,
	}

	// Check Configuration folder
	_, err := os.Stat(configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to access config folder %s: %w", configDir, err)
		}
		logrus.Printf("Creation of config folder: %s", configDir)
		if err = os.MkdirAll(configDir, 0770); err != nil {
			return nil, fmt.Errorf("unable to create config folder: %w", err)
		}
	}

	// Open param file
	rawConfig, err := os.ReadFile(serverConfig.GetCompleteParamFilename())
	if err == nil {
		serverConfig.ServerParam = &ServerParam{}
		if err = yaml.Unmarshal(rawConfig, serverConfig.ServerParam); err != nil {
			return nil, fmt.Errorf("unable to interpret param file: %w", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		logrus.Infof("Create default param file")
		serverConfig.ServerParam = &ServerParam{}
		if err = yaml.Unmarshal(ParamDefaultFile, serverConfig.ServerParam); err != nil {
			return nil, fmt.Errorf("unable to interpret default param file: %w", err)
		}
		if err = serverConfig.SaveParam(); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("unable to read param file: %w", err)
	}
	serverConfig.ServerParam.fillDefaults()

	if serverConfig.ServerParam.MifasolParam != nil {
		serverConfig.ServerParam.MifasolParam.ConfigDir = serverConfig.ConfigDir
	}

	// Environment, including .env files, wins over param.yaml
	loadDotEnv(filepath.Join(configDir, envFilename), envFilename)
	var ep envParam
	if err = env.Parse(&ep); err != nil {
		return nil, fmt.Errorf("unable to read environment: %w", err)
	}
	serverConfig.ServerParam.applyEnv(ep)

	// Open state file
	serverConfig.ServerState, err = NewServerState(serverConfig.GetCompleteStateFilename())
	if err != nil {
		return nil, err
	}

	return serverConfig, nil
}

// loadDotEnv loads the first existing file. Variables already set in the
// environment are left untouched.
func loadDotEnv(filenames ...string) {
	for _, filename := range filenames {
		if _, err := os.Stat(filename); err != nil {
			continue
		}
		if err := godotenv.Load(filename); err != nil {
			logrus.Warnf("Unable to load %s: %v", filename, err)
			continue
		}
		logrus.Debugf("Environment loaded from %s", filename)
		return
	}
}

func (sc *ServerConfig) GetCompleteParamFilename() string {
	return filepath.Join(sc.ConfigDir, paramFilename)
}

func (sc *ServerConfig) GetCompleteStateFilename() string {
	return filepath.Join(sc.ConfigDir, stateFilename)
}

func (sc *ServerConfig) GetCompleteCertFilename() string {
	return filepath.Join(sc.ConfigDir, "cert.pem")
}

func (sc *ServerConfig) GetCompleteKeyFilename() string {
	return filepath.Join(sc.ConfigDir, "key.pem")
}

func (sc *ServerConfig) SaveParam() error {
	logrus.Debugf("Save param file: %s", sc.GetCompleteParamFilename())
	rawConfig, err := yaml.Marshal(*sc.ServerParam)
	if err != nil {
		return fmt.Errorf("unable to serialize param file: %w", err)
	}
	if err = os.WriteFile(sc.GetCompleteParamFilename(), rawConfig, 0660); err != nil {
		return fmt.Errorf("unable to save param file: %w", err)
	}
	return nil
}
