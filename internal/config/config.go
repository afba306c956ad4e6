package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	RAG           RAGConfig           `mapstructure:"rag"`
	ModelProvider ModelProviderConfig `mapstructure:"model_provider"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Minio         MinioConfig         `mapstructure:"minio"`
	Callback      CallbackConfig      `mapstructure:"callback"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// RAGConfig 流式问答默认参数
type RAGConfig struct {
	Temperature    float64       `mapstructure:"temperature"`     // 默认采样温度
	MaxHistory     int           `mapstructure:"max_history"`     // 默认携带的历史轮数
	ChunkSize      int           `mapstructure:"chunk_size"`      // 知识召回分片大小
	DefaultAnswer  string        `mapstructure:"default_answer"`  // 兜底话术
	StreamTimeout  time.Duration `mapstructure:"stream_timeout"`  // 上游流式请求整体超时
	TiktokenCache  string        `mapstructure:"tiktoken_cache"`  // tiktoken 词表缓存目录
}

type ModelProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RetrievalConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type MongoConfig struct {
	URL        string        `mapstructure:"url"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Enabled    bool          `mapstructure:"enabled"`
}

type MinioConfig struct {
	Address            string `mapstructure:"address"`
	AccessKey          string `mapstructure:"access_key"`
	SecretKey          string `mapstructure:"secret_key"`
	Secure             bool   `mapstructure:"secure"`
	UploadBucket       string `mapstructure:"upload_bucket"`
	ReplaceDownloadURL string `mapstructure:"replace_download_url"` // 对外下载地址前缀，需改写回内部地址
}

// CallbackConfig 第三方生成/搜索服务的转发配置
type CallbackConfig struct {
	BochaBaseURL     string        `mapstructure:"bocha_base_url"`
	TavilyBaseURL    string        `mapstructure:"tavily_base_url"`
	DashScopeBaseURL string        `mapstructure:"dashscope_base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("KNOWRAG")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 配置文件优先，未设置时回落到环境变量
	if cfg.Redis.Password == "" {
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.Minio.AccessKey == "" {
		cfg.Minio.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	}
	if cfg.Minio.SecretKey == "" {
		cfg.Minio.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.RAG.Temperature <= 0 {
		c.RAG.Temperature = 0.7
	}
	if c.RAG.MaxHistory <= 0 {
		c.RAG.MaxHistory = 10
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 512
	}
	if c.RAG.DefaultAnswer == "" {
		c.RAG.DefaultAnswer = "根据已知信息，无法回答您的问题。"
	}
	if c.RAG.StreamTimeout <= 0 {
		c.RAG.StreamTimeout = 5 * time.Minute
	}
	if c.ModelProvider.Timeout <= 0 {
		c.ModelProvider.Timeout = 10 * time.Second
	}
	if c.Retrieval.Timeout <= 0 {
		c.Retrieval.Timeout = 60 * time.Second
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "rag"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "rag_user_logs"
	}
	if c.Mongo.Timeout <= 0 {
		c.Mongo.Timeout = 5 * time.Second
	}
	if c.Callback.Timeout <= 0 {
		c.Callback.Timeout = 120 * time.Second
	}
}

func Get() *Config {
	return cfg
}
