package config

import (
	"fmt"
	"strings"
	"time"
)

type Configs struct {
	Env string `toml:"env"`

	Database  DatabaseConfigs `toml:"database"`
	ApiServer ServerConfigs   `toml:"api_server"`
	Auth      AuthConfigs     `toml:"auth"`
	Session   SessionConfigs  `toml:"session"`
	File      FileConfigs     `toml:"file"`
	Storage   S3Configs       `toml:"storage"`
	Kafka     KafkaConfigs    `toml:"kafka"`
	Redis     RedisConfigs    `toml:"redis"`
	Polar     PolarConfigs    `toml:"polar"`
}

type DatabaseConfigs struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

func (d *DatabaseConfigs) ConnectionString() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

type ServerConfigs struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

type SessionConfigs struct {
	Secret string `toml:"secret"`
	Name   string `toml:"name"`
}

type AuthConfigs struct {
	TokenSecret string       `toml:"token_secret"`
	AccessToken TokenConfigs `toml:"access_token"`

	// SecretKey encrypts stored third-party credentials and access tokens.
	SecretKey string `toml:"secret_key"`
}

type TokenConfigs struct {
	Name       string        `toml:"name"`
	Expiration time.Duration `toml:"expiration"`
}

type FileConfigs struct {
	// Dir is where downloaded exercise files land when the local storage
	// backend is selected.
	Dir     string `toml:"dir"`
	MaxSize int    `toml:"max_size"`
}

type S3Configs struct {
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
}

type KafkaConfigs struct {
	Addr string `toml:"addr"`
}

type RedisConfigs struct {
	Addr string `toml:"addr"`
}

type PolarConfigs struct {
	// Host is the public base URL of this deployment. The OAuth redirect
	// URI is derived from it as <host>/polar/callback.
	Host string `toml:"host"`

	// WebhookSecret signs inbound webhook payloads. Leaving it empty
	// disables signature verification with a logged warning.
	WebhookSecret string `toml:"webhook_secret"`

	TokenURL string `toml:"token_url"`
	ApiURL   string `toml:"api_url"`
}

func (p *PolarConfigs) RedirectURI() string {
	return strings.TrimSuffix(p.Host, "/") + "/polar/callback"
}
