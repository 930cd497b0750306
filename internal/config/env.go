package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names an explicit .env file to read before REELBOOTH_* overrides.
const EnvFileVar = "REELBOOTH_ENV_FILE"

// loadEnvironment merges .env files (the config directory, then the working
// directory, then EnvFileVar) beneath the process environment. Process
// variables always win.
func loadEnvironment(configDir string) (map[string]string, error) {
	merged := make(map[string]string)
	candidates := []string{}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	candidates = append(candidates, ".env")
	if explicit := strings.TrimSpace(os.Getenv(EnvFileVar)); explicit != "" {
		candidates = append(candidates, explicit)
	}
	for _, path := range candidates {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "REELBOOTH_") {
			merged[k] = v
		}
	}
	return merged, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	ints := []struct {
		key    string
		target *int
	}{
		{"REELBOOTH_MAX_RECORDING_DURATION", &c.Session.MaxRecordingSeconds},
		{"REELBOOTH_COUNTDOWN_DURATION", &c.Session.CountdownSeconds},
		{"REELBOOTH_FREEZE_MILLIS", &c.Session.FreezeMillis},
	}
	for _, entry := range ints {
		raw, ok := env[entry.key]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", entry.key, raw)
		}
		*entry.target = value
	}

	strs := []struct {
		key    string
		target *string
	}{
		{"REELBOOTH_CAPTURE_DEVICE", &c.Capture.Device},
		{"REELBOOTH_API_TOKEN", &c.Paths.APIToken},
		{"REELBOOTH_UPLOAD_BASE_URL", &c.Upload.BaseURL},
		{"REELBOOTH_UPLOAD_TOKEN", &c.Upload.Token},
		{"REELBOOTH_NTFY_TOPIC", &c.Notifications.NtfyTopic},
		{"REELBOOTH_LOG_LEVEL", &c.Logging.Level},
	}
	for _, entry := range strs {
		if raw, ok := env[entry.key]; ok && strings.TrimSpace(raw) != "" {
			*entry.target = strings.TrimSpace(raw)
		}
	}
	return nil
}
