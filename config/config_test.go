package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brandcam.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Assets.Timeout.Std())
	assert.Equal(t, "@every 30s", cfg.Metrics.Schedule)
	assert.InDelta(t, 8, cfg.Segmentation.Softness, 1e-9)
	assert.Equal(t, time.Second/30, cfg.FrameInterval())
	assert.True(t, strings.HasSuffix(cfg.Storage.DataDir, "brandcam"))
}

func TestLoad_File(t *testing.T) {
	path := writeTempConfig(t, `{
		"server": {"addr": "127.0.0.1:9000"},
		"assets": {"timeout": "1500ms"},
		"segmentation": {"url": "http://matting:7000/infer", "softness": 0},
		"log": {"level": "debug"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 1500*time.Millisecond, cfg.Assets.Timeout.Std())
	assert.Equal(t, "http://matting:7000/infer", cfg.Segmentation.URL)
	assert.Zero(t, cfg.Segmentation.Softness)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 文件里没写的保持默认
	assert.Equal(t, 30, cfg.Server.FrameRate)
	assert.Equal(t, 2*time.Second, cfg.Segmentation.Timeout.Std())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeTempConfig(t, `{"server": `))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeTempConfig(t, `{"assets": {"timeout": "soon"}}`))
	assert.Error(t, err)

	_, err = Load(writeTempConfig(t, `{"server": {"addr": ":1", "frame_rate": 0}, "log": {"level": "loud"}}`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "server.frame_rate")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `{"server": {"addr": ":9000"}}`)
	t.Setenv("BRANDCAM_ADDR", ":7070")
	t.Setenv("BRANDCAM_SEGMENT_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 750*time.Millisecond, cfg.Segmentation.Timeout.Std())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, lookupFrom(map[string]string{
		"BRANDCAM_FRAME_RATE":    "60",
		"BRANDCAM_MASK_SOFTNESS": "4.5",
		"BRANDCAM_ZMQ_ENDPOINT":  "tcp://127.0.0.1:5556",
		"BRANDCAM_DATA_DIR":      "",
	}))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Server.FrameRate)
	assert.InDelta(t, 4.5, cfg.Segmentation.Softness, 1e-9)
	assert.Equal(t, "tcp://127.0.0.1:5556", cfg.Segmentation.ZMQEndpoint)
	assert.Equal(t, Default().Storage.DataDir, cfg.Storage.DataDir)

	err = applyEnv(&cfg, lookupFrom(map[string]string{
		"BRANDCAM_FRAME_RATE":    "fast",
		"BRANDCAM_ASSET_TIMEOUT": "later",
	}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "BRANDCAM_FRAME_RATE")
	assert.ErrorContains(t, err, "BRANDCAM_ASSET_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"frame rate", func(c *Config) { c.Server.FrameRate = 0 }, "frame_rate"},
		{"data dir", func(c *Config) { c.Storage.DataDir = "" }, "data_dir"},
		{"schedule", func(c *Config) { c.Metrics.Schedule = "whenever" }, "metrics.schedule"},
		{"softness", func(c *Config) { c.Segmentation.Softness = -1 }, "softness"},
		{"max bytes", func(c *Config) { c.Assets.MaxBytes = 0 }, "max_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"250ms"`), &d))
	assert.Equal(t, 250*time.Millisecond, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`1000000`), &d))
	assert.Equal(t, time.Millisecond, d.Std())

	out, err := json.Marshal(Duration(3 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(out))
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"", "info", "INFO", " debug ", "warn", "warning", "error"} {
		_, err := ParseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "brandcam.log")

	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger, cleanup, err := ConfigureLogging(LogConfig{Level: "warn", File: path}, &stderr)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	cleanup()

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "k=v")

	_, _, err = ConfigureLogging(LogConfig{Level: "chatty"}, &stderr)
	assert.Error(t, err)
}

func TestRotatingFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.log")
	rw, err := NewRotatingFileWriter(path, 50, 2)
	require.NoError(t, err)

	line := []byte(strings.Repeat("x", 30) + "\n")
	for i := 0; i < 4; i++ {
		n, err := rw.Write(line)
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	require.NoError(t, rw.Close())

	for _, p := range []string{path, path + ".1", path + ".2"} {
		data, err := os.ReadFile(p)
		require.NoError(t, err, p)
		assert.Equal(t, line, data, p)
	}
	_, err = os.Stat(path + ".3")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
