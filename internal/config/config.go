package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI   = "openai"
	ProviderGroq     = "groq"
	ProviderDeepgram = "deepgram"

	AudioBackendMiniaudio = "miniaudio"
	AudioBackendPortaudio = "portaudio"
	AudioBackendNone      = "none"

	groqBaseURL = "https://api.groq.com/openai/v1"
)

// Config represents the application configuration
type Config struct {
	// Instructions is the path of the file holding the game master system prompt
	Instructions string `yaml:"instructions" jsonschema:"description=Path of the file holding the game master instructions"`

	LLM       LLMConfig       `yaml:"llm"`
	Speech    SpeechConfig    `yaml:"speech"`
	Audio     AudioConfig     `yaml:"audio"`
	Images    ImagesConfig    `yaml:"images"`
	Narration NarrationConfig `yaml:"narration"`
	Server    ServerConfig    `yaml:"server"`
}

type LLMConfig struct {
	Provider string `yaml:"provider" jsonschema:"enum=openai,enum=groq"`
	Model    string `yaml:"model"`
	// BaseURL overrides the provider endpoint
	BaseURL string `yaml:"base_url,omitempty"`
}

type SpeechConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Provider string  `yaml:"provider" jsonschema:"enum=openai,enum=deepgram"`
	Model    string  `yaml:"model"`
	Voice    string  `yaml:"voice"`
	Speed    float64 `yaml:"speed" jsonschema:"minimum=0.25,maximum=4"`
}

type AudioConfig struct {
	Backend string `yaml:"backend" jsonschema:"enum=miniaudio,enum=portaudio,enum=none"`
	// BufferSize is the number of frames per buffer, only used by portaudio
	BufferSize int `yaml:"buffer_size"`
}

type ImagesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Size    string `yaml:"size"`
}

type NarrationConfig struct {
	CharacterDelay Duration `yaml:"character_delay"`
	// Boundary separates narrated units, a blank line by default
	Boundary            string `yaml:"boundary"`
	TypeDuringSynthesis bool   `yaml:"type_during_synthesis"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Instructions = "instructions.md"

	cfg.LLM.Provider = ProviderOpenAI
	cfg.LLM.Model = "gpt-4-0125-preview"

	cfg.Speech.Enabled = true
	cfg.Speech.Provider = ProviderOpenAI
	cfg.Speech.Model = "tts-1"
	cfg.Speech.Voice = "fable"
	cfg.Speech.Speed = 1

	cfg.Audio.Backend = AudioBackendMiniaudio

	cfg.Images.Enabled = false
	cfg.Images.Model = "dall-e-3"
	cfg.Images.Size = "1024x1024"

	cfg.Narration.CharacterDelay = Duration(50 * time.Millisecond)
	cfg.Narration.Boundary = "\n\n"

	cfg.Server.Host = "localhost"
	cfg.Server.Port = 7860

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ./dungeonmaster.yaml > ~/.config/dungeonmaster/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	candidates := []string{"dungeonmaster.yaml"}
	if configDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(configDir, "dungeonmaster", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return Load(path)
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGroq:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Speech.Provider {
	case ProviderOpenAI, ProviderDeepgram:
	default:
		return fmt.Errorf("unknown speech provider %q", c.Speech.Provider)
	}

	switch c.Audio.Backend {
	case AudioBackendMiniaudio, AudioBackendPortaudio, AudioBackendNone:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}

	if c.Narration.CharacterDelay < 0 {
		return fmt.Errorf("character delay must not be negative")
	}

	return nil
}

// LLMBaseURL returns the endpoint for the configured llm provider, empty for
// the provider default.
func (c *Config) LLMBaseURL() string {
	if c.LLM.BaseURL != "" {
		return c.LLM.BaseURL
	}
	if c.LLM.Provider == ProviderGroq {
		return groqBaseURL
	}
	return ""
}

// LLMAPIKey returns the API key of the configured llm provider from the
// environment.
func (c *Config) LLMAPIKey() (string, error) {
	if c.LLM.Provider == ProviderGroq {
		return apiKeyFromEnv("GROQ_API_KEY")
	}
	return apiKeyFromEnv("OPENAI_API_KEY")
}

// OpenAIAPIKey returns the OpenAI API key used for speech and images.
func OpenAIAPIKey() (string, error) {
	return apiKeyFromEnv("OPENAI_API_KEY")
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		FieldNameTag:   "yaml",
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "dungeonmaster configuration"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}
	return data, nil
}

func apiKeyFromEnv(name string) (string, error) {
	apiKey, ok := os.LookupEnv(name)
	if !ok || apiKey == "" {
		return "", fmt.Errorf("%s is not set", name)
	}
	return apiKey, nil
}
