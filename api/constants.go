package api

import "time"

const (
	// DefaultMaxUploadSize caps each uploaded file (10MB)
	DefaultMaxUploadSize = 10 * 1024 * 1024

	// DefaultAddr is the default listen address
	DefaultAddr = ":8080"

	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second
	ServerIdleTimeout  = 60 * time.Second

	// GracefulShutdownTimeout bounds how long in-flight requests may finish
	GracefulShutdownTimeout = 10 * time.Second

	// DefaultFilePermissions for temp directory creation
	DefaultFilePermissions = 0755
)
