package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Roster      RosterConfig      `yaml:"roster"`
	Export      ExportConfig      `yaml:"export"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Camera      CameraConfig      `yaml:"camera"`
	Session     SessionConfig     `yaml:"session"`
	Web         WebConfig         `yaml:"web"`
	Log         LogConfig         `yaml:"log"`
}

type RosterConfig struct {
	Path      string `yaml:"path"`       // JSON file holding enrolled students
	PhotosDir string `yaml:"photos_dir"` // where uploaded reference photos are stored
}

type ExportConfig struct {
	Path string `yaml:"path"` // xlsx file overwritten on every export
}

type RecognitionConfig struct {
	Backend      string        `yaml:"backend"`       // "http" or "dlib"
	EmbeddingURL string        `yaml:"embedding_url"` // face embedding server for the http backend
	ModelsDir    string        `yaml:"models_dir"`    // dlib model files for the dlib backend
	Metric       string        `yaml:"metric"`        // "euclidean" or "cosine"
	Threshold    float64       `yaml:"threshold"`     // maximum distance accepted as a match
	Strategy     string        `yaml:"strategy"`      // "first" or "closest"
	CacheTTL     time.Duration `yaml:"cache_ttl"`     // 0 keeps reference encodings until the photo changes
}

type CameraConfig struct {
	Device        int           `yaml:"device"`         // OpenCV device index
	FramesDir     string        `yaml:"frames_dir"`     // replay frames from a directory instead of a device
	FrameInterval time.Duration `yaml:"frame_interval"` // pacing for directory replay
	MaxFrameSize  int           `yaml:"max_frame_size"` // frames are downscaled to this size before encoding
}

type SessionConfig struct {
	ResetOnStart bool `yaml:"reset_on_start"` // clear the attendance log whenever a session starts
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS whitelist on top of localhost
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// envString returns the environment variable or the default if it is unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to the default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

// Defaults returns the configuration embedded in defaults.yaml.
func Defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	d := Defaults()

	return &Config{
		Roster: RosterConfig{
			Path:      envString("ROSTER_PATH", d.Roster.Path),
			PhotosDir: envString("ROSTER_PHOTOS_DIR", d.Roster.PhotosDir),
		},
		Export: ExportConfig{
			Path: envString("ATTENDANCE_EXPORT_PATH", d.Export.Path),
		},
		Recognition: RecognitionConfig{
			Backend:      strings.ToLower(envString("RECOGNITION_BACKEND", d.Recognition.Backend)),
			EmbeddingURL: envString("EMBEDDING_URL", d.Recognition.EmbeddingURL),
			ModelsDir:    envString("DLIB_MODELS_DIR", d.Recognition.ModelsDir),
			Metric:       strings.ToLower(envString("RECOGNITION_METRIC", d.Recognition.Metric)),
			Threshold:    envFloat("RECOGNITION_THRESHOLD", d.Recognition.Threshold),
			Strategy:     strings.ToLower(envString("RECOGNITION_STRATEGY", d.Recognition.Strategy)),
			CacheTTL:     envDuration("RECOGNITION_CACHE_TTL", d.Recognition.CacheTTL),
		},
		Camera: CameraConfig{
			Device:        envInt("CAMERA_DEVICE", d.Camera.Device),
			FramesDir:     envString("CAMERA_FRAMES_DIR", d.Camera.FramesDir),
			FrameInterval: envDuration("CAMERA_FRAME_INTERVAL", d.Camera.FrameInterval),
			MaxFrameSize:  envInt("CAMERA_MAX_FRAME_SIZE", d.Camera.MaxFrameSize),
		},
		Session: SessionConfig{
			ResetOnStart: envBool("SESSION_RESET_ON_START", d.Session.ResetOnStart),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", d.Log.Level),
			JSON:  envBool("LOG_JSON", d.Log.JSON),
		},
	}
}
