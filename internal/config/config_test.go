package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"simulation": { "environment": "tsunami", "seed": 99 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))

	sim := GetSimulationConfig()
	assert.Equal(t, "tsunami", sim.Environment)
	assert.Equal(t, int64(99), sim.Seed)
	assert.Equal(t, 3*time.Minute, sim.Duration)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./reacturelogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "reacture", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "earthquake", viper.GetString("simulation.environment"))
	assert.Equal(t, 60, viper.GetInt("simulation.tickRate"))
	assert.Equal(t, 10, viper.GetInt("telemetry.sampleRateHz"))
	assert.Equal(t, 128, viper.GetInt("telemetry.frameSize"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load("/nonexistent/path"))
	assert.Equal(t, "memory", GetStorageConfig().Type)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{"logLevel": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("REACTURE_STORAGE_TYPE", "sqlite,websocket")
	t.Setenv("REACTURE_SIMULATION_ENVIRONMENT", "wildfire")

	require.NoError(t, Load(t.TempDir()))

	assert.Equal(t, []string{"sqlite", "websocket"}, GetStorageConfig().Types())
	assert.Equal(t, "wildfire", GetSimulationConfig().Environment)
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("env", "earthquake", "")
	fs.Int64("seed", 0, "")
	require.NoError(t, BindFlags(fs, map[string]string{
		"simulation.environment": "env",
		"simulation.seed":        "seed",
	}))
	require.NoError(t, fs.Parse([]string{"--seed", "7"}))

	sim := GetSimulationConfig()
	assert.Equal(t, int64(7), sim.Seed)
	assert.Equal(t, "earthquake", sim.Environment)

	err := BindFlags(fs, map[string]string{"x": "missing"})
	assert.Error(t, err)
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": true },
			"sqlite": { "path": "/tmp/r.db", "dumpInterval": "10m" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, true, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/r.db", sc.SQLite.Path)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))
	oc := GetOTelConfig()
	assert.False(t, oc.Enabled)
	assert.Equal(t, "reacture-engine", oc.ServiceName)
	assert.Equal(t, 5*time.Second, oc.BatchTimeout)
	assert.True(t, oc.Insecure)

	viper.Reset()
	require.NoError(t, Load(writeConfig(t, `{
		"otel": { "enabled": true, "serviceName": "svc", "batchTimeout": "30s", "endpoint": "localhost:4318", "insecure": false, "metrics": true }
	}`)))
	oc = GetOTelConfig()
	assert.True(t, oc.Enabled)
	assert.Equal(t, "svc", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4318", oc.Endpoint)
	assert.False(t, oc.Insecure)
	assert.True(t, oc.Metrics)
}

func TestTypedHelpers(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, TelemetryConfig{SampleRateHz: 10}.SamplePeriod())
	assert.Zero(t, TelemetryConfig{}.SamplePeriod())
	assert.Equal(t, "https://db:8086", InfluxConfig{Protocol: "https", Host: "db", Port: "8086"}.URL())
	assert.Empty(t, StorageConfig{Type: " , "}.Types())
}
