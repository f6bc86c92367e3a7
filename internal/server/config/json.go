package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dpavlovs/filegate/internal/flagx"
	"github.com/dpavlovs/filegate/internal/timex"
)

// JsonConfig is the DTO used only for reading JSON configuration files.
// It uses timex.Duration for interval fields, which parses both string
// values such as "24h" and integer nanoseconds. After unmarshalling, its
// fields are copied into the runtime Config struct.
type JsonConfig struct {
	EndpointAddr                string         `json:"endpoint_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ActionTokenValidityDuration timex.Duration `json:"action_token_validity_duration"`
	PresignTTL                  timex.Duration `json:"presign_ttl"`
	UploadDir                   string         `json:"upload_dir"`
	BundleDir                   string         `json:"bundle_dir"`
	BundleRetention             timex.Duration `json:"bundle_retention"`
	SweepSchedule               string         `json:"sweep_schedule"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the -c
// or -config flag. If no file is named, nothing is loaded. An unreadable
// or malformed file panics: a half-applied config must never start a server.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.ActionTokenValidityDuration = time.Duration(c.ActionTokenValidityDuration.Duration)
	config.PresignTTL = time.Duration(c.PresignTTL.Duration)
	config.UploadDir = c.UploadDir
	config.BundleDir = c.BundleDir
	config.BundleRetention = time.Duration(c.BundleRetention.Duration)
	config.SweepSchedule = c.SweepSchedule
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
