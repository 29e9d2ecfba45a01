package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort                 string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL              string `env:"DATABASE_URL"`
	SecretKey                string `env:"SECRET_KEY,required"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	FrontendURL              string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	SMTPHost                 string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort                 int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser                 string `env:"EMAIL_USER"`
	SMTPPass                 string `env:"EMAIL_PASSWORD"`
	SMTPFrom                 string `env:"SMTP_FROM"`
	SMTPFromName             string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS               bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
