// backend/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type NHTSAConfig struct {
	ComplaintAPI string `yaml:"complaint_api"`
	RecallAPI    string `yaml:"recall_api"`
	FlatFileHost string `yaml:"flat_file_host"`
	FlatFileDir  string `yaml:"flat_file_dir"`
	FlatFileName string `yaml:"flat_file_name"`
}

type ETLConfig struct {
	YearStart          string   `yaml:"year_start"`
	YearEnd            string   `yaml:"year_end"`
	MinComplaints      int      `yaml:"min_complaints"`
	MaxVehicles        int      `yaml:"max_vehicles"`
	RecallVehicleLimit int      `yaml:"recall_vehicle_limit"`
	ExcludedMakes      []string `yaml:"excluded_makes"`
	DataDir            string   `yaml:"data_dir"`
	RequestTimeoutStr  string   `yaml:"request_timeout"`
	RequestTimeout     time.Duration // Parsed duration
}

type AlertConfig struct {
	Name           string  `yaml:"name"`
	SMTPHost       string  `yaml:"smtp_host"`
	SMTPPort       int     `yaml:"smtp_port"`
	DashboardURL   string  `yaml:"dashboard_url"`
	RatioThreshold float64 `yaml:"ratio_threshold"`

	// Populated from the environment, never from yaml.
	Sender     string
	Password   string
	Recipients []string
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	NHTSA    NHTSAConfig    `yaml:"nhtsa"`
	ETL      ETLConfig      `yaml:"etl"`
	Alert    AlertConfig    `yaml:"alert"`
}

// Load reads the yaml config file and overlays secrets from the environment.
// Callers receive the config by reference and hand it to each component's
// constructor; there is no package-level config state.
func Load(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment (.env is loaded by main before this).
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	cfg.Alert.Sender = os.Getenv("ALERT_EMAIL")
	cfg.Alert.Password = os.Getenv("ALERT_PASSWORD")
	if v := os.Getenv("ALERT_RECIPIENTS"); v != "" {
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				cfg.Alert.Recipients = append(cfg.Alert.Recipients, r)
			}
		}
	}

	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		return nil, fmt.Errorf("database host and dbname must be configured")
	}

	// Parse durations
	if cfg.ETL.RequestTimeoutStr != "" {
		cfg.ETL.RequestTimeout, err = time.ParseDuration(cfg.ETL.RequestTimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse request_timeout: %w", err)
		}
	} else {
		cfg.ETL.RequestTimeout = 20 * time.Second // Default
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.NHTSA.ComplaintAPI == "" {
		cfg.NHTSA.ComplaintAPI = "https://api.nhtsa.gov/complaints/complaintsByVehicle"
	}
	if cfg.NHTSA.RecallAPI == "" {
		cfg.NHTSA.RecallAPI = "https://api.nhtsa.gov/recalls/recallsByVehicle"
	}
	if cfg.NHTSA.FlatFileHost == "" {
		cfg.NHTSA.FlatFileHost = "ftp.nhtsa.dot.gov:21"
	}
	if cfg.NHTSA.FlatFileDir == "" {
		cfg.NHTSA.FlatFileDir = "/Complaints"
	}
	if cfg.NHTSA.FlatFileName == "" {
		cfg.NHTSA.FlatFileName = "flat_cmpl.txt"
	}
	if cfg.ETL.YearStart == "" {
		cfg.ETL.YearStart = "2020"
	}
	if cfg.ETL.YearEnd == "" {
		cfg.ETL.YearEnd = "2024"
	}
	if cfg.ETL.MinComplaints == 0 {
		cfg.ETL.MinComplaints = 50
	}
	if cfg.ETL.MaxVehicles == 0 {
		cfg.ETL.MaxVehicles = 50 // safety cap on vehicles per run
	}
	if cfg.ETL.RecallVehicleLimit == 0 {
		cfg.ETL.RecallVehicleLimit = 20
	}
	if len(cfg.ETL.ExcludedMakes) == 0 {
		cfg.ETL.ExcludedMakes = []string{"UNKNOWN", "FIRESTONE", "GOODYEAR"}
	}
	if cfg.ETL.DataDir == "" {
		cfg.ETL.DataDir = "data"
	}
	if cfg.Alert.Name == "" {
		cfg.Alert.Name = "critical_vehicle_risk"
	}
	if cfg.Alert.SMTPHost == "" {
		cfg.Alert.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Alert.SMTPPort == 0 {
		cfg.Alert.SMTPPort = 587
	}
	if cfg.Alert.RatioThreshold == 0 {
		cfg.Alert.RatioThreshold = 100
	}
}
