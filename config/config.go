package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Redis    Redis
	Storage  Storage
	Gemini   Gemini
	Scoring  Scoring
	Pipeline Pipeline
	Upload   Upload
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Storage struct {
	ConnectionString string
	Container        string
}

type Gemini struct {
	APIKey         string
	VisionModel    string
	TextModel      string
	EmbeddingModel string
}

// Scoring holds the hybrid-score weights. NewConfig normalizes them so that
// SimilarityWeight+KeywordWeight == 1.0, which keeps the hybrid score inside
// [0,1] without any per-call validation.
type Scoring struct {
	SimilarityWeight float64
	KeywordWeight    float64
}

type Pipeline struct {
	MaxCallRetries  int
	BaseRetryDelay  time.Duration
	MaxJobRetries   int
	BatchWindowSize int
	RasterDPI       float64
	Concurrency     int
}

type Upload struct {
	MaxFileSizeMB int
	MaxBulkUpload int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("STORAGE_CONTAINER", "answer-sheets")
	viper.SetDefault("GEMINI_VISION_MODEL", "gemini-1.5-flash")
	viper.SetDefault("GEMINI_TEXT_MODEL", "gemini-1.5-flash")
	viper.SetDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004")
	viper.SetDefault("SIMILARITY_WEIGHT", 0.6)
	viper.SetDefault("KEYWORD_WEIGHT", 0.4)
	viper.SetDefault("MAX_CALL_RETRIES", 3)
	viper.SetDefault("BASE_RETRY_DELAY_SECONDS", 2)
	viper.SetDefault("MAX_JOB_RETRIES", 3)
	viper.SetDefault("BATCH_WINDOW_SIZE", 5)
	viper.SetDefault("RASTER_DPI", 300)
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("MAX_FILE_SIZE_MB", 10)
	viper.SetDefault("MAX_BULK_UPLOAD", 50)

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")

	config.Storage.ConnectionString = viper.GetString("STORAGE_CONNECTION_STRING")
	config.Storage.Container = viper.GetString("STORAGE_CONTAINER")

	config.Gemini.APIKey = viper.GetString("GEMINI_API_KEY")
	config.Gemini.VisionModel = viper.GetString("GEMINI_VISION_MODEL")
	config.Gemini.TextModel = viper.GetString("GEMINI_TEXT_MODEL")
	config.Gemini.EmbeddingModel = viper.GetString("GEMINI_EMBEDDING_MODEL")

	config.Scoring.SimilarityWeight = viper.GetFloat64("SIMILARITY_WEIGHT")
	config.Scoring.KeywordWeight = viper.GetFloat64("KEYWORD_WEIGHT")
	if err := config.Scoring.normalize(); err != nil {
		return nil, err
	}

	config.Pipeline.MaxCallRetries = viper.GetInt("MAX_CALL_RETRIES")
	config.Pipeline.BaseRetryDelay = time.Duration(viper.GetInt("BASE_RETRY_DELAY_SECONDS")) * time.Second
	config.Pipeline.MaxJobRetries = viper.GetInt("MAX_JOB_RETRIES")
	config.Pipeline.BatchWindowSize = viper.GetInt("BATCH_WINDOW_SIZE")
	config.Pipeline.RasterDPI = viper.GetFloat64("RASTER_DPI")
	config.Pipeline.Concurrency = viper.GetInt("WORKER_CONCURRENCY")

	config.Upload.MaxFileSizeMB = viper.GetInt("MAX_FILE_SIZE_MB")
	config.Upload.MaxBulkUpload = viper.GetInt("MAX_BULK_UPLOAD")

	log.Info().Str("port", config.Server.Port).
		Float64("similarity_weight", config.Scoring.SimilarityWeight).
		Float64("keyword_weight", config.Scoring.KeywordWeight).
		Int("batch_window_size", config.Pipeline.BatchWindowSize).
		Msg("Config loaded")
	return &config, nil
}

func (s *Scoring) normalize() error {
	if s.SimilarityWeight <= 0 || s.KeywordWeight <= 0 {
		return fmt.Errorf("scoring weights must be positive, got similarity=%.2f keyword=%.2f",
			s.SimilarityWeight, s.KeywordWeight)
	}
	sum := s.SimilarityWeight + s.KeywordWeight
	s.SimilarityWeight /= sum
	s.KeywordWeight /= sum
	return nil
}
