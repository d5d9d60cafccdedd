package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// Load loads a configuration from a YAML file.
// Occurrences of ${VAR} are replaced with the value of the environment
// variable VAR before parsing; ${VAR:-default} falls back to default when
// VAR is unset or empty.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to write config file").
			WithDetail("path", filePath)
	}

	return nil
}

// substituteEnvVars replaces ${VAR} with environment variable values and
// ${VAR:-default} with the default when VAR is unset or empty.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := content[start+2 : end]
		name, fallback := expr, ""
		if i := strings.Index(expr, ":-"); i != -1 {
			name, fallback = expr[:i], expr[i+2:]
		}

		value := os.Getenv(name)
		if value == "" {
			value = fallback
		}

		b.WriteString(content[:start])
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
