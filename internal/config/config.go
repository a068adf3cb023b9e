package config

import (
	"time"
)

// Config is the full satlink configuration. Each command reads the section it needs.
type Config struct {
	Hub    HubConfig    `yaml:"hub"`
	Client ClientConfig `yaml:"client"`
	Source SourceConfig `yaml:"source"`
	Log    LogConfig    `yaml:"log"`
}

// HubConfig configures the discovery hub service.
type HubConfig struct {
	Addr string `yaml:"addr" env:"SATLINK_HUB_ADDR"`

	// Idle heartbeat on every /events stream
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval" env:"SATLINK_HUB_HEARTBEAT_INTERVAL"`

	// Pending announcements a subscriber may fall behind before it is disconnected
	SubscriberBacklog int `yaml:"subscriberBacklog" env:"SATLINK_HUB_SUBSCRIBER_BACKLOG"`

	// Use the first X-Forwarded-For hop as the observed address of a source
	TrustForwardedFor bool `yaml:"trustForwardedFor" env:"SATLINK_HUB_TRUST_FORWARDED_FOR"`

	ReadTimeout  time.Duration `yaml:"readTimeout" env:"SATLINK_HUB_READ_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" env:"SATLINK_HUB_IDLE_TIMEOUT"`
	ShutdownWait time.Duration `yaml:"shutdownWait" env:"SATLINK_HUB_SHUTDOWN_WAIT"`

	// Registration audit log; empty disables it
	AuditDir string `yaml:"auditDir" env:"SATLINK_HUB_AUDIT_DIR"`

	// HS256 secret guarding /events; empty leaves the stream open
	AuthSecret string `yaml:"authSecret" env:"SATLINK_HUB_AUTH_SECRET"`
}

// ClientConfig configures the entity registry and its transports.
type ClientConfig struct {
	// Hub base URL; empty means the persisted directory seeds the registry instead
	HubURL        string `yaml:"hubUrl" env:"SATLINK_CLIENT_HUB_URL"`
	DirectoryPath string `yaml:"directoryPath" env:"SATLINK_CLIENT_DIRECTORY"`

	// Port appended to source URLs that carry none
	SourcePort int `yaml:"sourcePort" env:"SATLINK_CLIENT_SOURCE_PORT"`

	PositionInterval time.Duration `yaml:"positionInterval" env:"SATLINK_CLIENT_POSITION_INTERVAL"`
	ColorInterval    time.Duration `yaml:"colorInterval" env:"SATLINK_CLIENT_COLOR_INTERVAL"`
	ProbeTimeout     time.Duration `yaml:"probeTimeout" env:"SATLINK_CLIENT_PROBE_TIMEOUT"`
	RequestTimeout   time.Duration `yaml:"requestTimeout" env:"SATLINK_CLIENT_REQUEST_TIMEOUT"`
	DialTimeout      time.Duration `yaml:"dialTimeout" env:"SATLINK_CLIENT_DIAL_TIMEOUT"`

	// Poll with default intervals when the capability probe fails
	ProbeFallback bool `yaml:"probeFallback" env:"SATLINK_CLIENT_PROBE_FALLBACK"`

	// Maximum trail length per entity; 0 keeps everything
	HistoryLimit int `yaml:"historyLimit" env:"SATLINK_CLIENT_HISTORY_LIMIT"`

	FrameRate int    `yaml:"frameRate" env:"SATLINK_CLIENT_FRAME_RATE"`
	Easing    string `yaml:"easing" env:"SATLINK_CLIENT_EASING"`

	ReconnectMin time.Duration `yaml:"reconnectMin" env:"SATLINK_CLIENT_RECONNECT_MIN"`
	ReconnectMax time.Duration `yaml:"reconnectMax" env:"SATLINK_CLIENT_RECONNECT_MAX"`

	// Bearer token presented to the hub's /events stream
	HubToken string `yaml:"hubToken" env:"SATLINK_CLIENT_HUB_TOKEN"`

	// Optional Prometheus listener; empty disables it
	MetricsAddr string `yaml:"metricsAddr" env:"SATLINK_CLIENT_METRICS_ADDR"`
}

// SourceConfig configures the demo telemetry source.
type SourceConfig struct {
	Addr      string `yaml:"addr" env:"SATLINK_SOURCE_ADDR"`
	Name      string `yaml:"name" env:"SATLINK_SOURCE_NAME"`
	Transport string `yaml:"transport" env:"SATLINK_SOURCE_TRANSPORT"`

	// Hub to announce to; empty skips registration
	HubURL        string        `yaml:"hubUrl" env:"SATLINK_SOURCE_HUB_URL"`
	RegisterDelay time.Duration `yaml:"registerDelay" env:"SATLINK_SOURCE_REGISTER_DELAY"`

	PositionInterval time.Duration `yaml:"positionInterval" env:"SATLINK_SOURCE_POSITION_INTERVAL"`
	ColorInterval    time.Duration `yaml:"colorInterval" env:"SATLINK_SOURCE_COLOR_INTERVAL"`
	Altitude         float64       `yaml:"altitude" env:"SATLINK_SOURCE_ALTITUDE"`

	// Value of Access-Control-Allow-Origin on HTTP answers
	AllowOrigin string `yaml:"allowOrigin" env:"SATLINK_SOURCE_ALLOW_ORIGIN"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"SATLINK_LOG_LEVEL"`
	Format string `yaml:"format" env:"SATLINK_LOG_FORMAT"`

	// Rotated log file; empty logs to stderr
	File       string `yaml:"file" env:"SATLINK_LOG_FILE"`
	MaxSizeMB  int    `yaml:"maxSizeMb" env:"SATLINK_LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"maxBackups" env:"SATLINK_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"maxAgeDays" env:"SATLINK_LOG_MAX_AGE_DAYS"`
}

// Defaults returns the baseline configuration. Source intervals and the default
// polling cadence follow the reference demo (75ms pushes, 200ms polls, 1s colors).
func Defaults() *Config {
	return &Config{
		Hub: HubConfig{
			Addr:              ":8000",
			HeartbeatInterval: 15 * time.Second,
			SubscriberBacklog: 1024,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownWait:      5 * time.Second,
			AuditDir:          "logs",
		},
		Client: ClientConfig{
			DirectoryPath:    "satellites.json",
			SourcePort:       7192,
			PositionInterval: 200 * time.Millisecond,
			ColorInterval:    1 * time.Second,
			ProbeTimeout:     5 * time.Second,
			RequestTimeout:   5 * time.Second,
			DialTimeout:      10 * time.Second,
			FrameRate:        60,
			Easing:           "linear",
			ReconnectMin:     1 * time.Second,
			ReconnectMax:     60 * time.Second,
		},
		Source: SourceConfig{
			Addr:             ":7192",
			Name:             "echo",
			Transport:        "ws",
			RegisterDelay:    50 * time.Millisecond,
			PositionInterval: 75 * time.Millisecond,
			ColorInterval:    1 * time.Second,
			Altitude:         1.3,
			AllowOrigin:      "*",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}
