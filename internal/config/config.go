package config

import "os"

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Media    MediaConfig
}

type ServerConfig struct {
	Port          string
	CORSOrigins   string
	StaticDir     string
	TempUploadDir string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     string
	RefreshTokenTTL    string
	CookieSecure       string
	CookieSameSite     string
	CookieDomain       string
	CookiePath         string
}

type MediaConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:          getenv("PORT", "8080"),
			CORSOrigins:   os.Getenv("CORS_ORIGIN"),
			StaticDir:     getenv("STATIC_DIR", "./public"),
			TempUploadDir: os.Getenv("TEMP_UPLOAD_DIR"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
			RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
			AccessTokenTTL:     getenv("ACCESS_TOKEN_TTL", "1h"),
			RefreshTokenTTL:    getenv("REFRESH_TOKEN_TTL", "240h"),
			CookieSecure:       os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite:     os.Getenv("AUTH_COOKIE_SAMESITE"),
			CookieDomain:       os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookiePath:         os.Getenv("AUTH_COOKIE_PATH"),
		},
		Media: MediaConfig{
			Endpoint:      os.Getenv("MEDIA_S3_ENDPOINT"),
			Region:        getenv("MEDIA_S3_REGION", "us-east-1"),
			Bucket:        os.Getenv("MEDIA_S3_BUCKET"),
			AccessKey:     os.Getenv("MEDIA_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("MEDIA_S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
