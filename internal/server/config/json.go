package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/smartwaste/internal/flagx"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/timex"
)

// JsonConfig mirrors Config for decoding configuration files. Durations
// accept strings like "300m". Pointer and zero-value fields that are absent
// from the file leave the current value untouched.
type JsonConfig struct {
	HTTPAddr    string   `json:"http_addr"`
	DatabaseDSN string   `json:"database_dsn"`
	LogLevel    string   `json:"log_level"`
	CORSOrigins []string `json:"cors_origins"`

	SecretKey  string            `json:"secret_key"`
	TokenTTL   *timex.Duration   `json:"token_ttl"`
	BcryptCost int               `json:"bcrypt_cost"`
	Rates      *models.RateTable `json:"reward_rates"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`
	SMTPFromName string `json:"smtp_from_name"`

	RedisAddr           string `json:"redis_addr"`
	RedisPassword       string `json:"redis_password"`
	RedisDB             int    `json:"redis_db"`
	OTPRequestsPerHour  int    `json:"otp_requests_per_hour"`
	LoginAttemptsPerMin int    `json:"login_attempts_per_minute"`

	MQTTBroker   string `json:"mqtt_broker"`
	MQTTClientID string `json:"mqtt_client_id"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password"`
	MQTTQoS      *byte  `json:"mqtt_qos"`

	InfluxURL    string `json:"influx_url"`
	InfluxToken  string `json:"influx_token"`
	InfluxOrg    string `json:"influx_org"`
	InfluxBucket string `json:"influx_bucket"`

	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminPhone    string `json:"admin_phone"`
	AdminName     string `json:"admin_name"`
}

// parseJson overlays values from the file named by -c/-config, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}

	setString(&config.SecretKey, c.SecretKey)
	if c.TokenTTL != nil {
		config.TokenTTL = c.TokenTTL.Duration
	}
	setInt(&config.BcryptCost, c.BcryptCost)
	if c.Rates != nil {
		config.Rates = *c.Rates
	}

	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.SMTPFromName, c.SMTPFromName)

	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setInt(&config.OTPRequestsPerHour, c.OTPRequestsPerHour)
	setInt(&config.LoginAttemptsPerMin, c.LoginAttemptsPerMin)

	setString(&config.MQTTBroker, c.MQTTBroker)
	setString(&config.MQTTClientID, c.MQTTClientID)
	setString(&config.MQTTUsername, c.MQTTUsername)
	setString(&config.MQTTPassword, c.MQTTPassword)
	if c.MQTTQoS != nil {
		config.MQTTQoS = *c.MQTTQoS
	}

	setString(&config.InfluxURL, c.InfluxURL)
	setString(&config.InfluxToken, c.InfluxToken)
	setString(&config.InfluxOrg, c.InfluxOrg)
	setString(&config.InfluxBucket, c.InfluxBucket)

	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.AdminPhone, c.AdminPhone)
	setString(&config.AdminName, c.AdminName)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
