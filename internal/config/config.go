package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env    string `yaml:"env" env-default:"local"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9200"`
	} `yaml:"listen"`
	Mongo struct {
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:""`
		Password string `yaml:"password" env-default:""`
		Database string `yaml:"database" env-default:"moiport"`
	} `yaml:"mongo"`
	Auth struct {
		JwtSecret     string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
		TokenTTLHours int    `yaml:"token_ttl_hours" env-default:"72"`
	} `yaml:"auth"`
	Instagram struct {
		VerifyToken string `yaml:"verify_token" env-default:""`
		AppSecret   string `yaml:"app_secret" env-default:""`
	} `yaml:"instagram"`
	Facebook struct {
		VerifyToken string `yaml:"verify_token" env-default:""`
		AppSecret   string `yaml:"app_secret" env-default:""`
	} `yaml:"facebook"`
	WhatsApp struct {
		VerifyToken  string `yaml:"verify_token" env-default:""`
		AppSecret    string `yaml:"app_secret" env-default:""`
		GraphBaseURL string `yaml:"graph_base_url" env-default:"https://graph.facebook.com/v21.0"`
	} `yaml:"whatsapp"`
	Telegram struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		ApiKey  string `yaml:"api_key" env-default:""`
		ChatId  int64  `yaml:"chat_id" env-default:"0"`
	} `yaml:"telegram"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds" env-default:"60"`
		BufferSeconds   int `yaml:"buffer_seconds" env-default:"30"`
	} `yaml:"scheduler"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
