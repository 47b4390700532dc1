package main

import "time"

type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	WsPort               int           `env:"WS_PORT,default=8081"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	IndexBufferSize      int           `env:"INDEX_BUFFER_SIZE,default=1024"`
	IndexBatchSize       int           `env:"INDEX_BATCH_SIZE,default=100"`
	IndexFlushInterval   time.Duration `env:"INDEX_FLUSH_INTERVAL,default=1s"`
	AuthSecret           string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4096"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT,default=5s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	SearchLimit          int           `env:"SEARCH_LIMIT,default=20"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=100"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,default=30s"`
}
