package config

import (
	"os"
	"testing"
)

func TestProductionConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("FINGERPRINTD_PRODUCTION_MODE")
	defer os.Unsetenv("FINGERPRINTD_LOCAL_MODE")
	os.Unsetenv("FINGERPRINTD_PRODUCTION_MODE")
	os.Unsetenv("FINGERPRINTD_LOCAL_MODE")

	cfg := Load()

	if cfg.Production.Enabled {
		t.Error("Production.Enabled = true, want false (disabled by default)")
	}
}

func TestProductionConfig_EnabledViaEnv(t *testing.T) {
	defer os.Unsetenv("FINGERPRINTD_PRODUCTION_MODE")
	os.Setenv("FINGERPRINTD_PRODUCTION_MODE", "1")

	cfg := Load()

	if !cfg.Production.Enabled {
		t.Error("Production.Enabled = false, want true when FINGERPRINTD_PRODUCTION_MODE=1")
	}
}

func TestProductionConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ProductionConfig
		wantErr bool
	}{
		{"disabled skips validation", ProductionConfig{Enabled: false, AllowNoIsolation: true}, false},
		{"no isolation forbidden in production", ProductionConfig{Enabled: true, AllowNoIsolation: true}, true},
		{"auth required but not configured", ProductionConfig{Enabled: true, RequireAuthentication: true}, true},
		{"auth required and configured", ProductionConfig{Enabled: true, RequireAuthentication: true, AuthenticationConfigured: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
