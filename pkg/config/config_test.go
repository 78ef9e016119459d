package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.Equal(t, EnvDevelopment, cfg.Env)
	require.Equal(t, "/api", cfg.APIPrefix)
	require.Equal(t, StorageLocal, cfg.Storage.Driver)
	require.Equal(t, "./uploads", cfg.Storage.RootDir)
	require.Equal(t, int64(1<<30), cfg.Uploads.MaxRequestBytes)
	require.Equal(t, int64(5<<20), cfg.Uploads.MaxPreviewBytes)
	require.Contains(t, cfg.Uploads.ResourceExtensions, "mkv")
	require.Equal(t, []string{"jpg", "jpeg", "png", "gif", "webp"}, cfg.Uploads.PreviewExtensions)
	require.Equal(t, 15*time.Minute, cfg.Downloads.SignedURLTTL)
	require.Equal(t, CacheMemory, cfg.Cache.Driver)
	require.Equal(t, "admin@resources.com", cfg.Seed.AdminEmail)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "GCS")
	v.Set("UPLOAD_MAX_REQUEST_BYTES", -1)
	v.Set("CACHE_META_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := fromViper(v)
	require.Equal(t, StorageGCS, cfg.Storage.Driver)
	require.Equal(t, int64(1<<30), cfg.Uploads.MaxRequestBytes)
	require.Equal(t, 10*time.Minute, cfg.Cache.MetaTTL)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	require.NoError(t, fromViper(v).Validate())

	v.Set("STORAGE_DRIVER", StorageGCS)
	v.Set("CACHE_DRIVER", "memcached")
	err := fromViper(v).Validate()
	require.ErrorContains(t, err, "GCS_BUCKET is required")
	require.ErrorContains(t, err, `unknown CACHE_DRIVER "memcached"`)
}

func TestValidateProductionSecrets(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENV", EnvProduction)
	err := fromViper(v).Validate()
	require.ErrorContains(t, err, "JWT_SECRET must be set")
	require.ErrorContains(t, err, "DOWNLOAD_SIGNED_URL_SECRET must be set")

	v.Set("JWT_SECRET", "a-real-signing-key")
	v.Set("DOWNLOAD_SIGNED_URL_SECRET", "another-real-key")
	require.NoError(t, fromViper(v).Validate())
}

func TestConnectionStrings(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	require.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=resource_hub sslmode=disable", cfg.Database.DSN())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
}
