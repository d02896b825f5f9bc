package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings holds the process-wide configuration. Values come from an
// optional YAML settings file, a local .env file and environment variables,
// with the environment taking precedence. Field names match the environment
// variables case-insensitively.
type Settings struct {
	GoogleAPIKey           string `yaml:"google_api_key"`
	HuggingFaceHubAPIToken string `yaml:"huggingfacehub_api_token"`

	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	VectorStorePath string `yaml:"vector_store_path"`
	UploadDirectory string `yaml:"upload_directory"`

	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	Temperature    float64 `yaml:"temperature"`
}

// LoadSettings builds the Settings for this process. A non-empty path names
// a YAML settings file used as the base layer; a `.env` file in the working
// directory is read into the environment first (never overriding variables
// that are already set). Both configured directories exist on disk when
// LoadSettings returns without error.
func LoadSettings(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error reading .env file: %v", err)
	}

	settings := &Settings{}
	applyDefaults(settings)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading settings file: %v", err)
		}
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("error parsing settings file: %v", err)
		}
	}

	if err := mergeWithEnv(settings); err != nil {
		return nil, err
	}

	if errs := settings.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid settings: %v", errs[0])
	}

	if err := settings.EnsureDirectories(); err != nil {
		return nil, err
	}

	return settings, nil
}

// MaxFileSizeBytes converts the configured size limit to bytes.
func (s *Settings) MaxFileSizeBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

// EnsureDirectories creates the vector store and upload directories if they
// are missing. Safe to call more than once.
func (s *Settings) EnsureDirectories() error {
	for _, dir := range []string{s.VectorStorePath, s.UploadDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %v", dir, err)
		}
	}
	return nil
}

func applyDefaults(settings *Settings) {
	if settings.AppEnv == "" {
		settings.AppEnv = "development"
	}
	if settings.LogLevel == "" {
		settings.LogLevel = "INFO"
	}
	if settings.MaxFileSizeMB == 0 {
		settings.MaxFileSizeMB = 50
	}

	if settings.ChunkSize == 0 {
		settings.ChunkSize = 1000
	}
	if settings.ChunkOverlap == 0 {
		settings.ChunkOverlap = 200
	}

	if settings.VectorStorePath == "" {
		settings.VectorStorePath = "./data/vector_store"
	}
	if settings.UploadDirectory == "" {
		settings.UploadDirectory = "./data/uploads"
	}

	if settings.EmbeddingModel == "" {
		settings.EmbeddingModel = "sentence-transformers/all-MiniLM-L12-v2"
	}
	if settings.ChatModel == "" {
		settings.ChatModel = "gemini-flash-latest"
	}
	if settings.Temperature == 0 {
		settings.Temperature = 0.1
	}
}

func mergeWithEnv(settings *Settings) error {
	if v, ok := lookupEnv("GOOGLE_API_KEY"); ok {
		settings.GoogleAPIKey = v
	}
	if v, ok := lookupEnv("HUGGINGFACEHUB_API_TOKEN"); ok {
		settings.HuggingFaceHubAPIToken = v
	}
	if v, ok := lookupEnv("APP_ENV"); ok {
		settings.AppEnv = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		settings.LogLevel = v
	}
	if v, ok := lookupEnv("VECTOR_STORE_PATH"); ok {
		settings.VectorStorePath = v
	}
	if v, ok := lookupEnv("UPLOAD_DIRECTORY"); ok {
		settings.UploadDirectory = v
	}
	if v, ok := lookupEnv("EMBEDDING_MODEL"); ok {
		settings.EmbeddingModel = v
	}
	if v, ok := lookupEnv("CHAT_MODEL"); ok {
		settings.ChatModel = v
	}

	intFields := []struct {
		name  string
		field *int
	}{
		{"MAX_FILE_SIZE_MB", &settings.MaxFileSizeMB},
		{"CHUNK_SIZE", &settings.ChunkSize},
		{"CHUNK_OVERLAP", &settings.ChunkOverlap},
	}
	for _, f := range intFields {
		v, ok := lookupEnv(f.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %v", f.name, v, err)
		}
		*f.field = n
	}

	if v, ok := lookupEnv("TEMPERATURE"); ok {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TEMPERATURE value %q: %v", v, err)
		}
		settings.Temperature = t
	}

	return nil
}

// lookupEnv matches the variable name exactly first, then falls back to a
// case-insensitive scan of the environment.
func lookupEnv(name string) (string, bool) {
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
