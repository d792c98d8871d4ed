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

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	Chat       ChatConfig
	Moderation ModerationConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	moderation, err := loadModerationConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Chat: chat, Moderation: moderation}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// 存储后端类型。
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// ChatConfig 描述安全聊天相关配置。
type ChatConfig struct {
	EncryptionKey string
	SessionTTL    time.Duration
	Storage       string
	DataDir       string
	RedisAddr     string
	RedisPassword string
}

// loadChatConfig 解析加密密钥、会话生存期和存储后端。
func loadChatConfig() (ChatConfig, error) {
	key := strings.TrimSpace(os.Getenv("CHAT_ENCRYPTION_KEY"))
	if key == "" {
		return ChatConfig{}, fmt.Errorf("CHAT_ENCRYPTION_KEY is required")
	}

	ttlMinutes := 30
	if override, err := parseOptionalIntEnv("CHAT_SESSION_TTL_MINUTES"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_SESSION_TTL_MINUTES must be at least 1")
		}
		ttlMinutes = *override
	}

	backend := strings.ToLower(getEnvOrDefault("CHAT_STORAGE", StorageMemory))
	switch backend {
	case StorageMemory, StorageFile, StorageRedis:
	default:
		return ChatConfig{}, fmt.Errorf("invalid CHAT_STORAGE value: %q", backend)
	}

	redisAddr := getEnvOrDefault("REDIS_ADDR", "127.0.0.1:6379")
	if backend == StorageRedis && redisAddr == "" {
		return ChatConfig{}, fmt.Errorf("REDIS_ADDR is required for redis storage")
	}

	return ChatConfig{
		EncryptionKey: key,
		SessionTTL:    time.Duration(ttlMinutes) * time.Minute,
		Storage:       backend,
		DataDir:       getEnvOrDefault("CHAT_DATA_DIR", "data"),
		RedisAddr:     redisAddr,
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
	}, nil
}

// ModerationConfig 描述审核复核（大模型）相关配置。
type ModerationConfig struct {
	LLMEnabled bool
	APIKey     string
	AccessKey  string
	SecretKey  string
	Model      string
	BaseURL    string
	Region     string
}

// loadModerationConfig 解析复核开关与 Ark 凭证。
func loadModerationConfig() (ModerationConfig, error) {
	enabled, err := parseBoolEnv("MODERATION_LLM_ENABLED", false)
	if err != nil {
		return ModerationConfig{}, err
	}

	return ModerationConfig{
		LLMEnabled: enabled,
		APIKey:     strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:  strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:  strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:      strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:    getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:     getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// Enabled 表示是否提供了必需的密钥。
func (c ModerationConfig) Enabled() bool {
	return c.LLMEnabled && c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ModerationConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}

	return ark.NewChatModel(ctx, cfg)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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
