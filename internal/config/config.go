package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting of the service.
type Config struct {
	Server ServerConfig
	Answer AnswerConfig
	Voice  VoiceConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	answer, err := loadAnswerConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Answer: answer, Voice: voice}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AnswerConfig describes the remote answer backend. DomainModels maps a
// domain tag to a model/bot identifier so each knowledge scope routes to its
// own retrieval endpoint; Model is the fallback for unmapped domains.
type AnswerConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	Timeout      time.Duration
	DomainModels map[string]string
}

// Enabled reports whether the required credentials were provided.
func (c AnswerConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// ModelFor returns the model identifier routed to the given domain.
func (c AnswerConfig) ModelFor(domain string) string {
	if override, ok := c.DomainModels[domain]; ok && override != "" {
		return override
	}
	return c.Model
}

// NewChatModel creates a chat model instance for the named model identifier.
func (c AnswerConfig) NewChatModel(ctx context.Context, modelID string) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("answer backend credentials missing: provide ANSWER_API_KEY + ANSWER_MODEL or AK/SK")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       modelID,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAnswerConfig() (AnswerConfig, error) {
	temperature, err := parseOptionalFloatEnv("ANSWER_TEMPERATURE")
	if err != nil {
		return AnswerConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ANSWER_TOP_P")
	if err != nil {
		return AnswerConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ANSWER_MAX_TOKENS")
	if err != nil {
		return AnswerConfig{}, err
	}

	timeoutSeconds := 45
	if override, err := parseOptionalIntEnv("ANSWER_TIMEOUT"); err != nil {
		return AnswerConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return AnswerConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ANSWER_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ANSWER_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ANSWER_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("ANSWER_MODEL")),
		BaseURL:      getEnvOrDefault("ANSWER_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ANSWER_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
		DomainModels: loadDomainModels(),
	}, nil
}

// loadDomainModels collects ANSWER_MODEL_<TAG> overrides, e.g.
// ANSWER_MODEL_A320=bot-a320-prod routes the a320 domain to its own bot.
func loadDomainModels() map[string]string {
	const prefix = "ANSWER_MODEL_"

	models := make(map[string]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		tag := strings.ToLower(strings.TrimPrefix(key, prefix))
		if tag == "" || strings.TrimSpace(value) == "" {
			continue
		}
		models[tag] = strings.TrimSpace(value)
	}
	return models
}

// VoiceConfig describes the realtime voice gateway.
type VoiceConfig struct {
	GatewayURL       string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	MaxRetries       int
	Enabled          bool
}

func loadVoiceConfig() (VoiceConfig, error) {
	gatewayURL := strings.TrimSpace(os.Getenv("VOICE_GATEWAY_URL"))

	handshake, err := durationEnvSeconds("VOICE_HANDSHAKE_TIMEOUT", 30)
	if err != nil {
		return VoiceConfig{}, err
	}
	read, err := durationEnvSeconds("VOICE_READ_TIMEOUT", 60)
	if err != nil {
		return VoiceConfig{}, err
	}
	write, err := durationEnvSeconds("VOICE_WRITE_TIMEOUT", 30)
	if err != nil {
		return VoiceConfig{}, err
	}
	ping, err := durationEnvSeconds("VOICE_PING_INTERVAL", 30)
	if err != nil {
		return VoiceConfig{}, err
	}

	retries := 3
	if override, err := parseOptionalIntEnv("VOICE_MAX_RETRIES"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil && *override > 0 {
		retries = *override
	}

	return VoiceConfig{
		GatewayURL:       gatewayURL,
		HandshakeTimeout: handshake,
		ReadTimeout:      read,
		WriteTimeout:     write,
		PingInterval:     ping,
		MaxRetries:       retries,
		Enabled:          gatewayURL != "",
	}, nil
}

func durationEnvSeconds(key string, defaultSeconds int) (time.Duration, error) {
	seconds := defaultSeconds
	if override, err := parseOptionalIntEnv(key); err != nil {
		return 0, err
	} else if override != nil && *override > 0 {
		seconds = *override
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
