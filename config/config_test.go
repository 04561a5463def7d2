package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	c, err := Parse(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "8080", c.AppPort)
	require.Equal(t, "disk", c.UploadBackend)
	require.Equal(t, filepath.Join("static", "uploads"), c.UploadDir)
	require.Equal(t, "/uploads", c.UploadPublicBase)
	require.EqualValues(t, 5*1024*1024, c.UploadMaxFileSizeBytes)
	require.Equal(t, 1, c.UploadMaxFileCount)
	require.Equal(t, []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}, c.UploadAllowedMimeTypes)
	require.Equal(t, []string{"*"}, c.AllowedOrigins)
	require.Empty(t, c.RedisHost)
}

func TestParseRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Parse(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestParseJSONSections(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "JWTSecret": "from-file", "AllowedOrigins": ["https://a.example"]},
		"redis": {"RedisHost": "cache", "RedisPort": 6380},
		"upload": {"Backend": "s3", "MaxFileSizeBytes": 1048576, "AllowedMimeTypes": ["image/png"], "VerifyContent": true},
		"s3": {"Bucket": "media", "Region": "eu-west-1", "PathStyle": true}
	}`)

	c, err := Parse(path)
	require.NoError(t, err)
	require.Equal(t, "9000", c.AppPort)
	require.Equal(t, "from-file", c.JWTSecret)
	require.Equal(t, []string{"https://a.example"}, c.AllowedOrigins)
	require.Equal(t, "cache", c.RedisHost)
	require.Equal(t, 6380, c.RedisPort)
	require.Equal(t, "s3", c.UploadBackend)
	require.EqualValues(t, 1048576, c.UploadMaxFileSizeBytes)
	require.Equal(t, []string{"image/png"}, c.UploadAllowedMimeTypes)
	require.True(t, c.UploadVerifyContent)
	require.Equal(t, "media", c.S3Bucket)
	require.Equal(t, "eu-west-1", c.S3Region)
	require.True(t, c.S3PathStyle)
}

func TestParseEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"app": {"AppPort": "9000", "JWTSecret": "from-file"}}`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("APP_PORT", "7000")
	t.Setenv("UPLOAD_DIR", "/data/uploads")
	t.Setenv("UPLOAD_MAX_FILE_SIZE_BYTES", "2097152")
	t.Setenv("UPLOAD_ALLOWED_MIME_TYPES", "image/png, image/gif")
	t.Setenv("UPLOAD_VERIFY_CONTENT", "true")

	c, err := Parse(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", c.JWTSecret)
	require.Equal(t, "7000", c.AppPort)
	require.Equal(t, "/data/uploads", c.UploadDir)
	require.EqualValues(t, 2097152, c.UploadMaxFileSizeBytes)
	require.Equal(t, []string{"image/png", "image/gif"}, c.UploadAllowedMimeTypes)
	require.True(t, c.UploadVerifyContent)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")

	t.Setenv("UPLOAD_MAX_FILE_SIZE_BYTES", "five")
	_, err := Parse("")
	require.ErrorContains(t, err, "UPLOAD_MAX_FILE_SIZE_BYTES")

	t.Setenv("UPLOAD_MAX_FILE_SIZE_BYTES", "")
	t.Setenv("UPLOAD_BACKEND", "ftp")
	_, err = Parse("")
	require.ErrorContains(t, err, "ftp")

	t.Setenv("UPLOAD_BACKEND", "s3")
	_, err = Parse("")
	require.ErrorContains(t, err, "S3_BUCKET")

	_, err = Parse(writeConfig(t, `{not json`))
	require.Error(t, err)
}
