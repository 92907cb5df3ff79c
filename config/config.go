package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the server.
type Config struct {
	Addr         string
	DatabasePath string
	SchemaTTL    time.Duration
	ExpirySweep  time.Duration
}

// Load reads configuration from CARDMART_* environment variables with
// sane defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("cardmart")
	v.AutomaticEnv()

	v.SetDefault("addr", ":3000")
	v.SetDefault("db", "cardmart.db")
	v.SetDefault("schema_ttl", 30*time.Second)
	v.SetDefault("expiry_sweep", time.Minute)

	return Config{
		Addr:         v.GetString("addr"),
		DatabasePath: v.GetString("db"),
		SchemaTTL:    v.GetDuration("schema_ttl"),
		ExpirySweep:  v.GetDuration("expiry_sweep"),
	}
}
