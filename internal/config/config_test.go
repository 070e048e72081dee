package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
env: dev
backend: mongo
timeout: 15s
sample:
  database_id: samples
  collection_id: orders
  partition_key: /account_number
  page_size: 25
mongo:
  uri: mongodb://db:27017
  request_charge: true
`)

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", conf.Env)
	assert.Equal(t, BackendMongo, conf.Backend)
	assert.Equal(t, 15*time.Second, conf.Timeout)
	assert.Equal(t, "samples", conf.Sample.DatabaseId)
	assert.Equal(t, "orders", conf.Sample.CollectionId)
	assert.Equal(t, 25, conf.Sample.PageSize)
	assert.Equal(t, "mongodb://db:27017", conf.Mongo.Uri)
	assert.True(t, conf.Mongo.RequestCharge)
	assert.Equal(t, "us-east-1", conf.Dynamo.Region)
}

func TestLoad_Defaults(t *testing.T) {
	conf, err := Load(writeConfig(t, "env: local\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendRest, conf.Backend)
	assert.Equal(t, "/account_number", conf.Sample.PartitionKey)
	assert.Equal(t, 10, conf.Sample.PageSize)
	assert.Equal(t, "http://localhost:8081", conf.Rest.Host)
	assert.NotEmpty(t, conf.Rest.MasterKey)
	assert.Equal(t, conf.Rest.MasterKey, conf.Emulator.MasterKey)
}

func TestLoad_EnvironmentOnlyWhenFileMissing(t *testing.T) {
	t.Setenv("DOC_BACKEND", BackendMemory)
	t.Setenv("DOC_DATABASE_ID", "from_env")

	conf, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, conf.Backend)
	assert.Equal(t, "from_env", conf.Sample.DatabaseId)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "backend: cassandra\n"},
		{"relative partition key", "sample:\n  partition_key: account_number\n"},
		{"page size too large", "sample:\n  page_size: 5000\n"},
		{"unknown env", "env: staging\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
