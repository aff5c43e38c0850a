package config

import (
	"os"
	"strconv"
)

type Config struct {
	ListenAddr      string
	DBPath          string
	MediaPath       string
	AnalyzerBackend string
	AnalyzerURL     string
	ClaudeAPIKey    string
	ClaudeModel     string
	CameraBackend   string
	CameraPath      string
	CameraWarmup    int
	LogLevel        string
	LogFile         string
}

func Load() *Config {
	return &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "/data/promeals.db"),
		MediaPath:       getEnv("MEDIA_PATH", "/data/media"),
		AnalyzerBackend: getEnv("ANALYZER_BACKEND", "webhook"),
		AnalyzerURL:     getEnv("ANALYZER_URL", ""),
		ClaudeAPIKey:    getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:     getEnv("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		CameraBackend:   getEnv("CAMERA_BACKEND", "none"),
		CameraPath:      getEnv("CAMERA_PATH", "/data/frames"),
		CameraWarmup:    getEnvInt("CAMERA_WARMUP_FRAMES", 2),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
