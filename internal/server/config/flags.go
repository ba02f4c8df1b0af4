package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   token signing secret
//	-t int      session token validity, minutes
//	-l string   log level (debug, info, warn, error)
//	-r string   Redis address
//	-m string   MQTT broker URL (e.g., "tcp://mosquitto:1883")
//	-i string   InfluxDB URL
//
// Only these flags are kept from args, so other components may define their
// own without collisions.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-l", "-r", "-m", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenTTL := fs.Int("t", int(config.TokenTTL.Minutes()), "token validity (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.MQTTBroker, "m", config.MQTTBroker, "mqtt broker")
	fs.StringVar(&config.InfluxURL, "i", config.InfluxURL, "influxdb url")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.TokenTTL = time.Duration(*tokenTTL) * time.Minute
	return nil
}
