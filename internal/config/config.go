package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"
	"time"

	"docsample/internal/lib/validate"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendRest   = "rest"
	BackendMongo  = "mongo"
	BackendDynamo = "dynamo"
	BackendMySQL  = "mysql"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local" validate:"oneof=local dev prod"`
	Backend string        `yaml:"backend" env:"DOC_BACKEND" env-default:"rest" validate:"oneof=memory rest mongo dynamo mysql"`
	Timeout time.Duration `yaml:"timeout" env:"DOC_TIMEOUT" env-default:"60s"`
	Sample  struct {
		DatabaseId   string `yaml:"database_id" env:"DOC_DATABASE_ID" env-default:"document_management" validate:"required,max=64"`
		CollectionId string `yaml:"collection_id" env:"DOC_COLLECTION_ID" env-default:"sales_orders" validate:"required,max=64"`
		PartitionKey string `yaml:"partition_key" env:"DOC_PARTITION_KEY" env-default:"/account_number" validate:"required,startswith=/"`
		PageSize     int    `yaml:"page_size" env:"DOC_PAGE_SIZE" env-default:"10" validate:"gte=1,lte=1000"`
	} `yaml:"sample"`
	Rest struct {
		Host              string  `yaml:"host" env:"DOC_HOST" env-default:"http://localhost:8081"`
		MasterKey         string  `yaml:"master_key" env:"DOC_MASTER_KEY" env-default:"C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="`
		RequestsPerSecond float64 `yaml:"requests_per_second" env-default:"10"`
		Burst             int     `yaml:"burst" env-default:"5"`
	} `yaml:"rest"`
	Mongo struct {
		Uri             string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
		ShardCollection bool   `yaml:"shard_collection" env-default:"false"`
		RequestCharge   bool   `yaml:"request_charge" env-default:"false"`
	} `yaml:"mongo"`
	Dynamo struct {
		Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
		Endpoint        string `yaml:"endpoint" env:"DYNAMO_ENDPOINT" env-default:""`
		AccessKeyId     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID" env-default:""`
		SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	} `yaml:"dynamo"`
	SQL struct {
		HostName string `yaml:"hostname" env:"MYSQL_HOST" env-default:"localhost"`
		Port     string `yaml:"port" env:"MYSQL_PORT" env-default:"3306"`
		UserName string `yaml:"username" env:"MYSQL_USER" env-default:"root"`
		Password string `yaml:"password" env:"MYSQL_PASSWORD" env-default:""`
	} `yaml:"mysql"`
	Telegram struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		AdminId string `yaml:"admin_id" env-default:""`
		Level   string `yaml:"level" env-default:"error" validate:"oneof=debug info warn error"`
	} `yaml:"telegram"`
	Emulator struct {
		BindIP    string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port      string `yaml:"port" env-default:"8081"`
		MasterKey string `yaml:"master_key" env:"DOC_MASTER_KEY" env-default:"C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="`
	} `yaml:"emulator"`
}

var instance *Config
var once sync.Once

// MustLoad reads the config file (or the environment only when the file is
// absent) and terminates the process on any error.
func MustLoad(path string) *Config {
	once.Do(func() {
		conf, err := Load(path)
		if err != nil {
			log.Fatal(err)
		}
		instance = conf
	})
	return instance
}

func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	conf := &Config{}
	err := cleanenv.ReadConfig(path, conf)
	if errors.Is(err, fs.ErrNotExist) {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("%s; %s", err, desc)
	}
	if err = validate.Struct(conf); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}
