package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	ollamaBaseURL = "http://localhost:11434"
)

type Config struct {
	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Embedder struct {
		Provider string        `yaml:"provider"`
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Model    string        `yaml:"model"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"embedder"`

	Vector struct {
		Backend   string `yaml:"backend"` // memory or pgvector
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"vector"`

	Mongo struct {
		URL               string        `yaml:"url"`
		StudentDatabase   string        `yaml:"student_database"`
		StudentCollection string        `yaml:"student_collection"`
		EventDatabase     string        `yaml:"event_database"`
		EventCollection   string        `yaml:"event_collection"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"mongo"`

	Scraper struct {
		MaxLength int           `yaml:"max_length"`
		RateLimit float64       `yaml:"rate_limit"`
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"scraper"`

	Transcript struct {
		Language  string        `yaml:"language"`
		RateLimit float64       `yaml:"rate_limit"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"transcript"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Agent struct {
		TopK         int    `yaml:"top_k"`
		SummaryWords int    `yaml:"summary_words"`
		FAQPath      string `yaml:"faq_path"`
	} `yaml:"agent"`

	Auth struct {
		Secret        string        `yaml:"secret"`
		AdminUser     string        `yaml:"admin_user"`
		AdminPassword string        `yaml:"admin_password"`
		TTL           time.Duration `yaml:"ttl"`
		SecureCookie  bool          `yaml:"secure_cookie"`
		Google        struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			RedirectURL  string `yaml:"redirect_url"`
		} `yaml:"google"`
	} `yaml:"auth"`

	Server struct {
		Port           int      `yaml:"port"`
		MaxUploadMB    int      `yaml:"max_upload_mb"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/campus/config.yaml"),
			"/etc/campus/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = ollamaBaseURL
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 60 * time.Second
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "all-minilm"
	}
	if config.Embedder.BaseURL == "" && config.Embedder.Provider == "ollama" {
		config.Embedder.BaseURL = ollamaBaseURL
	}
	if config.Embedder.Timeout == 0 {
		config.Embedder.Timeout = 60 * time.Second
	}

	if config.Vector.Backend == "" {
		config.Vector.Backend = "memory"
	}
	if config.Vector.TableName == "" {
		config.Vector.TableName = "chunks"
	}
	if config.Vector.VectorDim == 0 {
		config.Vector.VectorDim = 384
	}
	if config.Vector.BatchSize == 0 {
		config.Vector.BatchSize = 100
	}

	if config.Mongo.StudentDatabase == "" {
		config.Mongo.StudentDatabase = "student_db"
	}
	if config.Mongo.StudentCollection == "" {
		config.Mongo.StudentCollection = "students"
	}
	if config.Mongo.EventDatabase == "" {
		config.Mongo.EventDatabase = "student_management"
	}
	if config.Mongo.EventCollection == "" {
		config.Mongo.EventCollection = "events"
	}
	if config.Mongo.Timeout == 0 {
		config.Mongo.Timeout = 10 * time.Second
	}

	if config.Scraper.MaxLength == 0 {
		config.Scraper.MaxLength = 2000
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 15 * time.Second
	}

	if config.Transcript.Language == "" {
		config.Transcript.Language = "en"
	}
	if config.Transcript.RateLimit == 0 {
		config.Transcript.RateLimit = 2.0
	}
	if config.Transcript.Timeout == 0 {
		config.Transcript.Timeout = 15 * time.Second
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 50
	}

	if config.Agent.TopK == 0 {
		config.Agent.TopK = 2
	}
	if config.Agent.SummaryWords == 0 {
		config.Agent.SummaryWords = 20
	}
	if config.Agent.FAQPath == "" {
		config.Agent.FAQPath = "faq.json"
	}

	if config.Auth.AdminUser == "" {
		config.Auth.AdminUser = "admin"
	}
	if config.Auth.TTL == 0 {
		config.Auth.TTL = 24 * time.Hour
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 20
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		config.LLM.APIKey = key
		if config.LLM.Provider == "" {
			config.LLM.Provider = "openai"
			if config.LLM.BaseURL == "" {
				config.LLM.BaseURL = groqBaseURL
			}
			if config.LLM.Model == "" {
				config.LLM.Model = "llama3-8b-8192"
			}
		}
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == "" || config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
		if config.Embedder.Provider == "" || config.Embedder.Provider == "ollama" {
			config.Embedder.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Vector.URL = dbURL
	}
	if mongoURL := os.Getenv("MONGO_URL"); mongoURL != "" {
		config.Mongo.URL = mongoURL
	}
	if secret := os.Getenv("SESSION_SECRET_KEY"); secret != "" {
		config.Auth.Secret = secret
	}
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		config.Auth.Google.ClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		config.Auth.Google.ClientSecret = secret
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		config.Server.Port = port
	}
}
