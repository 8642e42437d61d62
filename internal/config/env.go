package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays GDID_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("GDID_NAME_REGEX"); v != "" {
		cfg.NameRegex = v
	}
	if v := os.Getenv("GDID_AUTHORITY_NAME"); v != "" {
		cfg.Authority.Name = v
	}
	if v := os.Getenv("GDID_COUNTER_MAX"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Authority.CounterMax = n
		}
	}
	if v := os.Getenv("GDID_MAX_BLOCK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Authority.MaxBlockSize = n
		}
	}
	if v := os.Getenv("GDID_AUTHORITY_CALL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Authority.CallTimeoutMs = n
		}
	}
	// GDID_LOCATIONS=name=kind:path,name2=kind:path
	if v := os.Getenv("GDID_LOCATIONS"); v != "" {
		if locs := parseLocations(v); len(locs) > 0 {
			cfg.Authority.Locations = locs
		}
	}
	if v := os.Getenv("GDID_AUTHORITY_ADDR"); v != "" {
		cfg.Generator.Authority = v
	}
	if v := os.Getenv("GDID_BLOCK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.DefaultBlockSize = n
		}
	}
	if v := os.Getenv("GDID_LOW_WATER_MARK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Generator.LowWaterMark = f
		}
	}
	if v := os.Getenv("GDID_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.RetryCount = n
		}
	}
	if v := os.Getenv("GDID_RETRY_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.RetryIntervalMs = n
		}
	}
	if v := os.Getenv("GDID_CALL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.CallTimeoutMs = n
		}
	}
	if v := os.Getenv("GDID_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GDID_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func parseLocations(v string) []LocationConfig {
	var out []LocationConfig
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		name, spec, ok := strings.Cut(part, "=")
		if !ok || name == "" {
			continue
		}
		kind, path, _ := strings.Cut(spec, ":")
		out = append(out, LocationConfig{Name: name, Kind: kind, Path: path})
	}
	return out
}
