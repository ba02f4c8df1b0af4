package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays values from environment variables. Variable names
// follow the deployment's .env conventions.
func parseEnv(config *Config) error {
	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_URL")
	envString(&config.LogLevel, "LOG_LEVEL")
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok && v != "" {
		config.CORSOrigins = strings.Split(v, ",")
	}

	envString(&config.SecretKey, "SECRET_KEY")
	if v, ok := os.LookupEnv("ACCESS_TOKEN_EXPIRE_MINUTES"); ok && v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
		}
		config.TokenTTL = time.Duration(minutes) * time.Minute
	}

	envString(&config.SMTPHost, "SMTP_SERVER")
	envString(&config.SMTPUsername, "EMAIL_USERNAME")
	envString(&config.SMTPPassword, "EMAIL_PASSWORD")
	envString(&config.SMTPFrom, "EMAIL_FROM")
	envString(&config.SMTPFromName, "EMAIL_FROM_NAME")

	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")

	envString(&config.MQTTBroker, "MQTT_BROKER")
	envString(&config.MQTTUsername, "MQTT_USERNAME")
	envString(&config.MQTTPassword, "MQTT_PASSWORD")

	envString(&config.InfluxURL, "INFLUXDB_URL")
	envString(&config.InfluxToken, "INFLUXDB_TOKEN")

	envString(&config.AdminEmail, "ADMIN_EMAIL")
	envString(&config.AdminPassword, "ADMIN_PASSWORD")
	envString(&config.AdminPhone, "ADMIN_PHONE")

	for name, dst := range map[string]*int{
		"SMTP_PORT":   &config.SMTPPort,
		"REDIS_DB":    &config.RedisDB,
		"BCRYPT_COST": &config.BcryptCost,
	} {
		if err := envInt(dst, name); err != nil {
			return err
		}
	}
	return nil
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}
