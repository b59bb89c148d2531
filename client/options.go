package client

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/lahirusamith/mssql-go/driver"
)

// defaultPoolSizeEnv overrides the default maximum pool size. When unset,
// the default is NumCPU * 2.
const defaultPoolSizeEnv = "MSSQL_GO_DEFAULT_POOL_SIZE"

// Options configures a Client.
type Options struct {
	// Connector supplies physical connections. Required.
	Connector driver.Connector

	// Connection parameters.
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// DefaultSchema is applied as a session option after login.
	DefaultSchema string

	// LoginTimeout bounds the connect handshake when the pool opens a new
	// physical connection. The wait for a pooled connection is governed by
	// PoolOptions.AcquireTimeout. Default: 30s.
	LoginTimeout time.Duration

	// Secure-transport options. Certificate files are loaded by the
	// driver; the paths are passed through untouched.
	Encrypt                bool
	TrustServerCertificate bool
	CAFile                 string
	CertFile               string
	KeyFile                string
	KeyPassword            string

	// Pool selects the connection pool lifetime:
	//   nil                      -> process-wide pool shared by every client
	//                               with the same connection fingerprint
	//   fresh *PoolOptions       -> private pool for this client only
	//   reused *PoolOptions      -> pool shared by all clients constructed
	//                               with that exact pointer
	Pool *PoolOptions

	// Logger is the logger implementation to use. If nil, a JSON logger
	// at LogLevel is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string

	// DebugMode enables per-operation trace logging of acquire, dispatch
	// and release.
	DebugMode bool
}

// PoolOptions configures a connection pool. Clients sharing the same
// *PoolOptions value share the pool it describes.
type PoolOptions struct {
	// MaxOpenConnections caps concurrently open physical connections.
	// Default: NumCPU * 2, overridable via MSSQL_GO_DEFAULT_POOL_SIZE.
	MaxOpenConnections int

	// MaxIdleConnections caps connections kept idle for reuse.
	// Default: MaxOpenConnections.
	MaxIdleConnections int

	// IdleTimeout closes idle connections not used for this long.
	// Default: 30s.
	IdleTimeout time.Duration

	// AcquireTimeout bounds how long an acquire blocks for a free
	// connection once the pool is at capacity. Zero means fail fast with
	// PoolExhaustedError.
	AcquireTimeout time.Duration
}

// DefaultPoolOptions returns the pool configuration used when a client
// supplies none.
func DefaultPoolOptions() PoolOptions {
	maxOpen := runtime.NumCPU() * 2
	if v := os.Getenv(defaultPoolSizeEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxOpen = n
		}
	}
	return PoolOptions{
		MaxOpenConnections: maxOpen,
		MaxIdleConnections: maxOpen,
		IdleTimeout:        30 * time.Second,
		AcquireTimeout:     30 * time.Second,
	}
}

// withDefaults fills zero fields with defaults.
func (po PoolOptions) withDefaults() PoolOptions {
	def := DefaultPoolOptions()
	if po.MaxOpenConnections <= 0 {
		po.MaxOpenConnections = def.MaxOpenConnections
	}
	if po.MaxIdleConnections <= 0 || po.MaxIdleConnections > po.MaxOpenConnections {
		po.MaxIdleConnections = po.MaxOpenConnections
	}
	if po.IdleTimeout <= 0 {
		po.IdleTimeout = def.IdleTimeout
	}
	return po
}

// driverConfig assembles the driver.Config for this client's connections.
func (o Options) driverConfig() driver.Config {
	cfg := driver.Config{
		Host:                   o.Host,
		Port:                   o.Port,
		User:                   o.User,
		Password:               o.Password,
		Database:               o.Database,
		LoginTimeout:           o.LoginTimeout,
		Encrypt:                o.Encrypt,
		TrustServerCertificate: o.TrustServerCertificate,
		CAFile:                 o.CAFile,
		CertFile:               o.CertFile,
		KeyFile:                o.KeyFile,
		KeyPassword:            o.KeyPassword,
	}
	if o.DefaultSchema != "" {
		cfg.Session = map[string]string{"defaultSchema": o.DefaultSchema}
	}
	return cfg
}
