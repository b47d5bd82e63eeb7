package main

import "fmt"

const (
	roleAll    = "all"
	roleAPI    = "api"
	roleWorker = "worker"

	backendMemory = "memory"
	backendMongo  = "mongo"
	backendRedis  = "redis"
)

type appConfig struct {
	Env             string `env:"APP_ENV" envDefault:"development"`
	ServiceName     string `env:"SERVICE_NAME" envDefault:"notifykit"`
	Role            string `env:"APP_ROLE" envDefault:"all"`             // all, api or worker
	StorageBackend  string `env:"STORAGE_BACKEND" envDefault:"mongo"`    // mongo or memory
	QueueBackend    string `env:"QUEUE_BACKEND" envDefault:"redis"`      // redis or memory
	QueueName       string `env:"NOTIFICATION_QUEUE" envDefault:"notifications"`
	OwnerConfigFile string `env:"OWNER_CONFIG_FILE"`
}

func (c appConfig) validate() error {
	switch c.Role {
	case roleAll, roleAPI, roleWorker:
	default:
		return fmt.Errorf("unknown APP_ROLE %q", c.Role)
	}
	switch c.StorageBackend {
	case backendMongo, backendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.QueueBackend {
	case backendRedis, backendMemory:
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.QueueBackend)
	}
	if c.Role != roleAll && (c.StorageBackend == backendMemory || c.QueueBackend == backendMemory) {
		return fmt.Errorf("APP_ROLE %q needs shared storage; memory backends only work with APP_ROLE=all", c.Role)
	}
	return nil
}

func (c appConfig) runsAPI() bool    { return c.Role == roleAll || c.Role == roleAPI }
func (c appConfig) runsWorker() bool { return c.Role == roleAll || c.Role == roleWorker }
