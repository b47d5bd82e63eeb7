// Package config loads typed configuration structs from environment
// variables (github.com/caarlos0/env) after reading an optional .env file
// (github.com/joho/godotenv).
//
// Every package owns its own Config struct with `env` and `envDefault`
// tags; the process entry point loads them with Load or MustLoad. Load
// caches per type, so repeated calls are cheap and consistent.
package config
