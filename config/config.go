package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config 服务的全部配置，JSON 文件和 BRANDCAM_* 环境变量都映射到这里
type Config struct {
	Server       ServerConfig       `json:"server"`
	Storage      StorageConfig      `json:"storage"`
	Assets       AssetsConfig       `json:"assets"`
	Segmentation SegmentationConfig `json:"segmentation"`
	Metrics      MetricsConfig      `json:"metrics"`
	Log          LogConfig          `json:"log"`
}

type ServerConfig struct {
	Addr      string `json:"addr"`
	FrameRate int    `json:"frame_rate"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

type AssetsConfig struct {
	Timeout  Duration `json:"timeout"`
	MaxBytes int64    `json:"max_bytes"`
}

// SegmentationConfig 两种遮罩来源可以同时启用，都为空时只能通过 HTTP 上传遮罩
type SegmentationConfig struct {
	URL         string   `json:"url"`
	ZMQEndpoint string   `json:"zmq_endpoint"`
	Timeout     Duration `json:"timeout"`
	Softness    float64  `json:"softness"`
}

type MetricsConfig struct {
	Schedule string `json:"schedule"`
}

type LogConfig struct {
	Level    string `json:"level"`
	File     string `json:"file"`
	MaxBytes int    `json:"max_bytes"`
	Backups  int    `json:"backups"`
}

// Duration 在 JSON 里写成 "5s"、"250ms"
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// 也接受纳秒整数
		var n int64
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return fmt.Errorf("duration must be a string like \"5s\": %w", err)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			FrameRate: 30,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Assets: AssetsConfig{
			Timeout:  Duration(5 * time.Second),
			MaxBytes: 32 << 20,
		},
		Segmentation: SegmentationConfig{
			Timeout:  Duration(2 * time.Second),
			Softness: 8,
		},
		Metrics: MetricsConfig{
			Schedule: "@every 30s",
		},
		Log: LogConfig{
			Level:    "info",
			MaxBytes: 10 << 20,
			Backups:  3,
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "brandcam-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "brandcam")
}

// Load 默认值 -> JSON 文件（path 为空时跳过）-> 环境变量，最后校验
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FrameInterval 帧循环的 tick 间隔
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Server.FrameRate)
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.FrameRate <= 0 || c.Server.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("server.frame_rate %d out of range (1-240)", c.Server.FrameRate))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is empty"))
	}
	if c.Assets.Timeout <= 0 {
		errs = append(errs, errors.New("assets.timeout must be positive"))
	}
	if c.Assets.MaxBytes <= 0 {
		errs = append(errs, errors.New("assets.max_bytes must be positive"))
	}
	if c.Segmentation.Timeout <= 0 {
		errs = append(errs, errors.New("segmentation.timeout must be positive"))
	}
	if c.Segmentation.Softness < 0 {
		errs = append(errs, errors.New("segmentation.softness must not be negative"))
	}
	if _, err := cron.ParseStandard(c.Metrics.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("metrics.schedule %q: %w", c.Metrics.Schedule, err))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type envKind int

const (
	envString envKind = iota
	envInt
	envFloat
	envDuration
)

type envSpec struct {
	name  string
	kind  envKind
	apply func(cfg *Config, v any)
}

var envSpecs = []envSpec{
	{"BRANDCAM_ADDR", envString, func(c *Config, v any) { c.Server.Addr = v.(string) }},
	{"BRANDCAM_FRAME_RATE", envInt, func(c *Config, v any) { c.Server.FrameRate = v.(int) }},
	{"BRANDCAM_DATA_DIR", envString, func(c *Config, v any) { c.Storage.DataDir = v.(string) }},
	{"BRANDCAM_ASSET_TIMEOUT", envDuration, func(c *Config, v any) { c.Assets.Timeout = v.(Duration) }},
	{"BRANDCAM_SEGMENT_URL", envString, func(c *Config, v any) { c.Segmentation.URL = v.(string) }},
	{"BRANDCAM_ZMQ_ENDPOINT", envString, func(c *Config, v any) { c.Segmentation.ZMQEndpoint = v.(string) }},
	{"BRANDCAM_SEGMENT_TIMEOUT", envDuration, func(c *Config, v any) { c.Segmentation.Timeout = v.(Duration) }},
	{"BRANDCAM_MASK_SOFTNESS", envFloat, func(c *Config, v any) { c.Segmentation.Softness = v.(float64) }},
	{"BRANDCAM_METRICS_SCHEDULE", envString, func(c *Config, v any) { c.Metrics.Schedule = v.(string) }},
	{"BRANDCAM_LOG_LEVEL", envString, func(c *Config, v any) { c.Log.Level = v.(string) }},
	{"BRANDCAM_LOG_FILE", envString, func(c *Config, v any) { c.Log.File = v.(string) }},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, s := range envSpecs {
		raw, ok := lookup(s.name)
		if !ok || raw == "" {
			continue
		}
		switch s.kind {
		case envString:
			s.apply(cfg, raw)
		case envInt:
			n, err := strconv.Atoi(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", s.name, raw, err))
				continue
			}
			s.apply(cfg, n)
		case envFloat:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", s.name, raw, err))
				continue
			}
			s.apply(cfg, f)
		case envDuration:
			d, err := time.ParseDuration(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", s.name, raw, err))
				continue
			}
			s.apply(cfg, Duration(d))
		}
	}
	return errors.Join(errs...)
}
