package dbready

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image       string            `yaml:"image"`
	Ports       []string          `yaml:"ports"`
	Environment map[string]string `yaml:"environment"`
}

// DatabaseDSN derives a Postgres connection string from the compose service
// definition: host port from the first port mapping, credentials from the
// POSTGRES_* environment entries.
func (m *Manager) DatabaseDSN() (string, error) {
	raw, err := os.ReadFile(m.opts.ComposeFile)
	if err != nil {
		return "", fmt.Errorf("read compose file: %w", err)
	}

	var cf composeFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return "", fmt.Errorf("parse compose file %s: %w", m.opts.ComposeFile, err)
	}

	svc, ok := cf.Services[m.opts.Service]
	if !ok {
		return "", fmt.Errorf("compose file %s has no service %q", m.opts.ComposeFile, m.opts.Service)
	}
	if len(svc.Ports) == 0 {
		return "", fmt.Errorf("service %q exposes no ports", m.opts.Service)
	}

	hostPort, _, found := strings.Cut(svc.Ports[0], ":")
	if !found {
		hostPort = svc.Ports[0]
	}

	user := svc.Environment["POSTGRES_USER"]
	if user == "" {
		user = "postgres"
	}
	password := svc.Environment["POSTGRES_PASSWORD"]
	database := svc.Environment["POSTGRES_DB"]
	if database == "" {
		database = user
	}

	return fmt.Sprintf(
		"host=localhost port=%s user=%s password=%s dbname=%s sslmode=disable",
		hostPort, user, password, database,
	), nil
}
