package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cache         sync.Map // reflect.Type -> *entry
	dotenvOnce    sync.Once
	dotenvFilesMu sync.Mutex
	dotenvFiles   []string
)

type entry struct {
	once  sync.Once
	value any
	err   error
}

// UseDotenv sets the files read before the first Load. Missing files are
// ignored. Defaults to ".env". Has no effect once a config was loaded.
func UseDotenv(files ...string) {
	dotenvFilesMu.Lock()
	dotenvFiles = files
	dotenvFilesMu.Unlock()
}

func loadDotenv() {
	dotenvOnce.Do(func() {
		dotenvFilesMu.Lock()
		files := dotenvFiles
		dotenvFilesMu.Unlock()

		if len(files) == 0 {
			_ = godotenv.Load()
			return
		}
		for _, f := range files {
			// godotenv never overrides variables that are already set
			_ = godotenv.Load(f)
		}
	})
}

// Parse fills a fresh T from the environment using `env` and `envDefault`
// struct tags. Nothing is cached.
func Parse[T any]() (T, error) {
	loadDotenv()

	var v T
	if err := env.Parse(&v); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// Load fills v from the environment. Each config type is parsed once per
// process; later calls copy the cached value, or return the cached error.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	key := reflect.TypeFor[T]()
	e, _ := cache.LoadOrStore(key, &entry{})
	ent := e.(*entry)

	ent.once.Do(func() {
		ent.value, ent.err = Parse[T]()
	})
	if ent.err != nil {
		return ent.err
	}

	*v = ent.value.(T)
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
