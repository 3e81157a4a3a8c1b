package config

import "errors"

var (
	// ErrServiceNameRequired is returned when service name is not provided
	ErrServiceNameRequired = errors.New("service name is required")

	// ErrConfigFileNotFound is returned when config file is not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidPort is returned when the admin port is out of range
	ErrInvalidPort = errors.New("admin port must be between 0 and 65535")

	// ErrUnknownStorageType is returned for an unrecognized storage type
	ErrUnknownStorageType = errors.New("unknown storage type (supported: memory, leveldb, redis)")

	// ErrRedisAddrRequired is returned when redis storage has no address
	ErrRedisAddrRequired = errors.New("redis address is required when storage type is redis")

	// ErrInvalidLogLevel is returned for an unrecognized logging level
	ErrInvalidLogLevel = errors.New("invalid logging level (supported: debug, info, warn, error, fatal)")
)
