package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr    string
		BaseURL string
	}
	Telegram struct {
		Token         string
		Mode          string // polling or webhook
		WebhookURL    string
		WebhookSecret string
		AdminIDs      string
	}
	Ledger struct {
		Driver         string // sqlite or mongo
		Bootstrap      bool   // start on the in-memory store until /migrate
		TimeoutSeconds int
	}
	Database struct {
		Path string
	}
	Mongo struct {
		URI      string
		Database string
	}
	Redis struct {
		Addr     string
		Password string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		LinkSecret     string
		LinkTTLMinutes int
	}
	Payroll struct {
		MonthlySalary string
		WorkingDays   int
		WorkingHours  int
		Timezone      string
	}
	Report struct {
		MaxConcurrent int
	}
}

// AdminIDList parses the comma-separated admin chat ids.
func (c Config) AdminIDList() ([]int64, error) {
	raw := strings.TrimSpace(c.Telegram.AdminIDs)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("CLOCKLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.baseurl", "http://localhost:8080")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.mode", "polling")
	v.SetDefault("telegram.webhookurl", "")
	v.SetDefault("telegram.webhooksecret", "")
	v.SetDefault("telegram.adminids", "")
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.bootstrap", false)
	v.SetDefault("ledger.timeoutseconds", 5)
	v.SetDefault("database.path", "data/clockledger.db")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "clockledger")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "clockledger")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.linksecret", "")
	v.SetDefault("auth.linkttlminutes", 15)
	v.SetDefault("payroll.monthlysalary", "3500")
	v.SetDefault("payroll.workingdays", 22)
	v.SetDefault("payroll.workinghours", 8)
	v.SetDefault("payroll.timezone", "Asia/Kuala_Lumpur")
	v.SetDefault("report.maxconcurrent", 3)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
