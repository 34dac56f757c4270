package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	Endpoint   string
	PublicURL  string
}

type Graph struct {
	PageAccessToken    string
	IGUserID           string
	APIVersion         string
	WebhookVerifyToken string
	AppSecret          string
}

type Config struct {
	DatabaseURL           string
	GoogleCredentialsFile string
	GoogleTokenFile       string
	GeminiAPIKey          string
	StaticPostPrompt      string
	CarouselPostPrompt    string
	VideoPostPrompt       string
	CalendarWebhookURL    string
	R2                    R2
	Graph                 Graph
	DeleteDelayHours      int
}

func LoadConfig() *Config {
	return &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		GoogleTokenFile:       getEnv("GOOGLE_TOKEN_FILE", "token.json"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		StaticPostPrompt:      getEnv("STATIC_POST_PROMPT", ""),
		CarouselPostPrompt:    getEnv("CAROUSEL_POST_PROMPT", ""),
		VideoPostPrompt:       getEnv("VIDEO_POST_PROMPT", ""),
		CalendarWebhookURL:    getEnv("CALENDAR_WEBHOOK_URL", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			Endpoint:   getEnv("R2_ENDPOINT", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Graph: Graph{
			PageAccessToken:    getEnv("FACEBOOK_PAGE_ACCESS_TOKEN", ""),
			IGUserID:           getEnv("INSTAGRAM_USER_ID", ""),
			APIVersion:         getEnv("FACEBOOK_GRAPH_API_VERSION", "v17.0"),
			WebhookVerifyToken: getEnv("FACEBOOK_WEBHOOK_VERIFY_TOKEN", ""),
			AppSecret:          getEnv("FACEBOOK_APP_SECRET", ""),
		},
		DeleteDelayHours: getEnvInt("DELETE_DELAY_HOURS", 1),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
