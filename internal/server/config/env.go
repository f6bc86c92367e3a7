package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays FILEGATE_* environment variables onto the config.
// A .env file in the working directory is read first if present; real
// environment variables win over .env entries, which is godotenv's default.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(name string, target *string) {
		if v, ok := os.LookupEnv(name); ok {
			*target = v
		}
	}
	setDuration := func(name string, target *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*target = d
			}
		}
	}

	setString("FILEGATE_ENDPOINT_ADDR", &config.EndpointAddr)
	setString("FILEGATE_DATABASE_DSN", &config.DatabaseDSN)
	setString("FILEGATE_SECRET_KEY", &config.SecretKey)
	setDuration("FILEGATE_ACCESS_TOKEN_VALIDITY", &config.AccessTokenValidityDuration)
	setDuration("FILEGATE_ACTION_TOKEN_VALIDITY", &config.ActionTokenValidityDuration)
	setDuration("FILEGATE_PRESIGN_TTL", &config.PresignTTL)
	setString("FILEGATE_UPLOAD_DIR", &config.UploadDir)
	setString("FILEGATE_BUNDLE_DIR", &config.BundleDir)
	setDuration("FILEGATE_BUNDLE_RETENTION", &config.BundleRetention)
	setString("FILEGATE_SWEEP_SCHEDULE", &config.SweepSchedule)
	setString("FILEGATE_S3_ROOT_USER", &config.S3RootUser)
	setString("FILEGATE_S3_ROOT_PASSWORD", &config.S3RootPassword)
	setString("FILEGATE_S3_BUCKET", &config.S3Bucket)
	setString("FILEGATE_S3_REGION", &config.S3Region)
	setString("FILEGATE_S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
}
