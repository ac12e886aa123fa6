package graphrag

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Neo4jConfig holds the connection parameters for the graph database.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// OpenAIConfig holds the credentials and model names for the hosted
// chat and embedding services.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// Config is the top-level configuration for the library's examples and for
// applications that prefer file-based configuration. Environment variables
// always take precedence over file values, so secrets can stay out of files.
type Config struct {
	Neo4j      Neo4jConfig  `yaml:"neo4j"`
	OpenAI     OpenAIConfig `yaml:"openai"`
	DatasetURL string       `yaml:"dataset_url"`
}

// LoadConfig reads configuration from an optional YAML file and then applies
// environment variable overrides and defaults.
//
// The recognized environment variables are NEO4J_URI, NEO4J_USERNAME,
// NEO4J_PASSWORD, NEO4J_DATABASE, OPENAI_API_KEY, OPENAI_MODEL, and
// OPENAI_EMBEDDING_MODEL.
//
// Parameters:
//   - path: Path to a YAML config file. An empty path skips file loading;
//     a missing file at a non-empty path is an error.
//
// Returns:
//
//	The resolved configuration, or an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides replaces config values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	overrideFromEnv(&cfg.Neo4j.URI, "NEO4J_URI")
	overrideFromEnv(&cfg.Neo4j.Username, "NEO4J_USERNAME")
	overrideFromEnv(&cfg.Neo4j.Password, "NEO4J_PASSWORD")
	overrideFromEnv(&cfg.Neo4j.Database, "NEO4J_DATABASE")
	overrideFromEnv(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideFromEnv(&cfg.OpenAI.Model, "OPENAI_MODEL")
	overrideFromEnv(&cfg.OpenAI.EmbeddingModel, "OPENAI_EMBEDDING_MODEL")
	overrideFromEnv(&cfg.DatasetURL, "GRAPHRAG_DATASET_URL")
}

// applyDefaults fills in the values that have well-known defaults.
func applyDefaults(cfg *Config) {
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = "neo4j://localhost:7687"
	}
	if cfg.Neo4j.Username == "" {
		cfg.Neo4j.Username = "neo4j"
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.DatasetURL == "" {
		cfg.DatasetURL = DefaultDatasetURL
	}
}

func overrideFromEnv(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
