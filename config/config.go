package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var SecretKey []byte

func Init() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("no .env file found, relying on environment")
	}

	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		logrus.Fatal("JWT secret key not set")
	}
	SecretKey = []byte(secret)
}

func Port() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func WebhookURL() string {
	return os.Getenv("NOTIFY_WEBHOOK_URL")
}
