package api

import (
	"crypto"
	"time"
)

type ServerConfig struct {
	Auth  AuthConfig
	S3    S3Config
	DB    DBConfig
	Redis RedisConfig

	// ID 是服務實例的識別名稱，作為 consumer group 的成員名稱
	ID string
}

type AuthConfig struct {
	// PrivateKey 用於簽發與驗證席位憑證，僅支援 Ed25519
	PrivateKey crypto.Signer
	// TokenTTL 是席位憑證的有效期間
	TokenTTL time.Duration
}

type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Bucket          string
	PublicBaseURL   string
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix 是本服務所有 Redis 鍵的共用前綴
	KeyPrefix string
	// ExpireTime 是回合相關鍵（快照、序號）的存活時間
	ExpireTime time.Duration
	// ConsumerGroup 是稽核 worker 的 consumer group 名稱
	ConsumerGroup string

	StreamKeys RedisStreamKeys
}

type RedisStreamKeys struct {
	// Events 是回合事件的共享串流
	Events string
}
