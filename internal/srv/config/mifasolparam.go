package config

import (
	"fmt"
	"path/filepath"
)

const mifasolCertFilename = "mifasolcert.pem"

// MifasolParam points the mifasol source at a self-hosted music library. It
// satisfies the settings interface expected by the mifasol rest client.
type MifasolParam struct {
	ConfigDir        string `yaml:"-"`
	ServerHostname   string `yaml:"hostname"`
	ServerPort       int64  `yaml:"port"`
	ServerSsl        bool   `yaml:"ssl"`
	ServerSelfSigned bool   `yaml:"self_signed"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Timeout          int64  `yaml:"timeout"`
}

func (c MifasolParam) Address() string {
	scheme := "http"
	if c.ServerSsl {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.ServerHostname, c.ServerPort)
}

func (c MifasolParam) GetCompleteConfigCertFilename() string {
	return filepath.Join(c.ConfigDir, mifasolCertFilename)
}

func (c MifasolParam) GetServerHostname() string { return c.ServerHostname }

func (c MifasolParam) GetServerPort() int64 { return c.ServerPort }

func (c MifasolParam) GetServerSsl() bool { return c.ServerSsl }

func (c MifasolParam) GetServerSelfSigned() bool { return c.ServerSelfSigned }

func (c MifasolParam) GetTimeout() int64 {
	if c.Timeout <= 0 {
		return 30
	}
	return c.Timeout
}

func (c MifasolParam) GetUsername() string { return c.Username }

func (c MifasolParam) GetPassword() string { return c.Password }
