package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/opsdash/servicekpi/internal/kpi"
)

// Config holds all configuration for the application.
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	MaxUploadBytes int64

	// Goals maps calculator name to its target value.
	Goals map[string]float64
	// Keywords drive the keyword-matching calculators.
	Keywords kpi.Keywords
	// ComplianceDefault is the assumed-compliant percentage reported when
	// no efficiency data exists.
	ComplianceDefault float64
}

// DefaultGoals returns the built-in per-KPI targets.
func DefaultGoals() map[string]float64 {
	return map[string]float64{
		"average_ticket_value":   2500,
		"job_close_rate":         80,
		"weekly_revenue":         20000,
		"average_job_efficiency": 100,
		"compliance_rate":        100,
		"membership_win_rate":    25,
		"hydro_jetting_sold":     10,
		"descaling_sold":         10,
		"on_time_arrival_rate":   90,
		"five_star_reviews":      20,
		"warranty_call_rate":     5,
		"upsell_conversion_rate": 30,
		"total_jobs":             100,
		"total_revenue":          50000,
	}
}

// goalsFile is the YAML overlay named by GOALS_FILE.
type goalsFile struct {
	Goals             map[string]float64 `yaml:"goals"`
	Keywords          kpi.Keywords       `yaml:"keywords"`
	ComplianceDefault float64            `yaml:"compliance_default"`
}

// Load loads configuration from environment variables and the optional
// goals file.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Goals:             DefaultGoals(),
		Keywords:          kpi.DefaultKeywords(),
		ComplianceDefault: kpi.DefaultComplianceRate,
	}

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "33554432"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}
	config.MaxUploadBytes = maxUpload

	if path := os.Getenv("GOALS_FILE"); path != "" {
		if err := config.applyGoalsFile(path); err != nil {
			return nil, err
		}
	}

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// applyGoalsFile overlays goals and keyword lists from a YAML file onto
// the defaults. Only the keys present in the file change.
func (c *Config) applyGoalsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read goals file: %w", err)
	}
	var gf goalsFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return fmt.Errorf("parse goals file: %w", err)
	}
	for name, goal := range gf.Goals {
		c.Goals[name] = goal
	}
	if len(gf.Keywords.HydroJetting) > 0 {
		c.Keywords.HydroJetting = gf.Keywords.HydroJetting
	}
	if len(gf.Keywords.Descaling) > 0 {
		c.Keywords.Descaling = gf.Keywords.Descaling
	}
	if len(gf.Keywords.Warranty) > 0 {
		c.Keywords.Warranty = gf.Keywords.Warranty
	}
	if len(gf.Keywords.Membership) > 0 {
		c.Keywords.Membership = gf.Keywords.Membership
	}
	if gf.ComplianceDefault > 0 {
		c.ComplianceDefault = gf.ComplianceDefault
	}
	return nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
