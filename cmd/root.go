package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "ses-matcher"
)

type Config struct {
	LLM            LLMConfig            `mapstructure:"llm"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Gemini         GeminiConfig         `mapstructure:"gemini"`
	Bedrock        BedrockConfig        `mapstructure:"bedrock"`
	RecordSource   RecordSourceConfig   `mapstructure:"record-source"`
	VectorStore    VectorStoreConfig    `mapstructure:"vector-store"`
	EmbeddingCache EmbeddingCacheConfig `mapstructure:"embedding-cache"`
	Matching       MatchingConfig       `mapstructure:"matching"`
	Server         ServerConfig         `mapstructure:"server"`
}

type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	BaseURL        string `mapstructure:"base-url"`
	EmbeddingModel string `mapstructure:"embedding-model"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type BedrockConfig struct {
	Region string `mapstructure:"region"`
}

type RecordSourceConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SQLitePath string        `mapstructure:"sqlite-path"`
}

type VectorStoreConfig struct {
	Type     string         `mapstructure:"type"`
	Pinecone PineconeConfig `mapstructure:"pinecone"`
	PGVector PGVectorConfig `mapstructure:"pgvector"`
}

type PineconeConfig struct {
	Host      string        `mapstructure:"host"`
	APIKey    string        `mapstructure:"api-key"`
	Namespace string        `mapstructure:"namespace"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PGVectorConfig struct {
	URL       string `mapstructure:"url"`
	Table     string `mapstructure:"table"`
	Dimension int    `mapstructure:"dimension"`
}

type EmbeddingCacheConfig struct {
	RedisURL string        `mapstructure:"redis-url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MatchingConfig struct {
	TopK int `mapstructure:"top-k"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	Schedule string `mapstructure:"schedule"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "ses-matcher structures SES candidate and requisition mails and matches candidates to requisitions",
	}
)

// envBindings maps config keys to the environment variables used by existing
// deployments.
var envBindings = map[string]string{
	"llm.provider":                  "LLM_PROVIDER",
	"llm.model":                     "LLM_MODEL",
	"openai.api-key":                "OPENAI_API_KEY",
	"openai.api-key-file":           "OPENAI_API_KEY_FILE",
	"openai.base-url":               "OPENAI_BASE_URL",
	"gemini.api-key":                "GOOGLE_API_KEY",
	"gemini.api-key-file":           "GOOGLE_API_KEY_FILE",
	"bedrock.region":                "AWS_REGION",
	"record-source.url":             "RECORD_SOURCE_URL",
	"record-source.sqlite-path":     "RECORD_SOURCE_SQLITE_PATH",
	"vector-store.type":             "VECTOR_STORE",
	"vector-store.pinecone.host":    "PINECONE_INDEX_HOST",
	"vector-store.pinecone.api-key": "PINECONE_API_KEY",
	"vector-store.pgvector.url":     "DATABASE_URL",
	"embedding-cache.redis-url":     "REDIS_URL",
	"server.addr":                   "SERVER_ADDR",
	"server.schedule":               "SCHEDULE",
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.max-log-length", 200)
	viper.SetDefault("openai.embedding-model", "text-embedding-3-small")
	viper.SetDefault("bedrock.region", "ap-northeast-1")
	viper.SetDefault("record-source.timeout", 60*time.Second)
	viper.SetDefault("vector-store.type", "pinecone")
	viper.SetDefault("vector-store.pinecone.timeout", 30*time.Second)
	viper.SetDefault("vector-store.pgvector.table", "candidate_vectors")
	viper.SetDefault("vector-store.pgvector.dimension", 1536)
	viper.SetDefault("embedding-cache.ttl", 7*24*time.Hour)
	viper.SetDefault("matching.top-k", 20)
	viper.SetDefault("server.addr", ":8000")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is ses-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("provider", "", "llm provider (openai, ai_studio, bedrock)")
	rootCmd.PersistentFlags().String("model", "", "llm model name from the catalog (see the models command)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Only the default location may be missing.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
