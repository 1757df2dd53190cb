package config

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "go duration", in: "90m", want: 90 * time.Minute},
		{name: "days", in: "7d", want: 7 * 24 * time.Hour},
		{name: "weeks", in: "2w", want: 14 * 24 * time.Hour},
		{name: "upper case", in: " 3D ", want: 3 * 24 * time.Hour},
		{name: "garbage", in: "soon", wantErr: true},
		{name: "unknown unit", in: "5y", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "development skips secrets", cfg: Config{DBDriver: "mysql", AppEnv: "development"}},
		{name: "bad driver", cfg: Config{DBDriver: "oracle", AppEnv: "development"}, wantErr: true},
		{name: "production missing password", cfg: Config{DBDriver: "postgres", AppEnv: "production", JWTSecret: "0123456789abcdef"}, wantErr: true},
		{name: "production short secret", cfg: Config{DBDriver: "postgres", AppEnv: "production", DBPassword: "pw", JWTSecret: "short"}, wantErr: true},
		{name: "production ok", cfg: Config{DBDriver: "postgres", AppEnv: "production", DBPassword: "pw", JWTSecret: "0123456789abcdef"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConfig() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	mysqlCfg := Config{DBDriver: "mysql", DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "3306", DBName: "d"}
	if got := mysqlCfg.GetDSN(); got != "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True&loc=UTC" {
		t.Fatalf("unexpected mysql dsn: %s", got)
	}

	pgCfg := Config{DBDriver: "postgres", DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d", DBSSLMode: "disable"}
	if got := pgCfg.GetDSN(); got != "host=h port=5432 user=u password=p dbname=d sslmode=disable TimeZone=UTC" {
		t.Fatalf("unexpected postgres dsn: %s", got)
	}
}
