package auth

import (
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultSessionCookieName names the cookie that carries the signed
	// session id
	DefaultSessionCookieName = "session_id"

	// DefaultSessionDuration bounds how long a session cookie stays valid
	DefaultSessionDuration = 24 * time.Hour

	envPrefix = "AUTH_"
)

// AppConfig is the file and environment backed configuration for the
// subsystem. It satisfies Config.
type AppConfig struct {
	SigningKey        string        `json:"signing_key" yaml:"signing_key" koanf:"signing_key"`
	Issuer            string        `json:"issuer" yaml:"issuer" koanf:"issuer"`
	SessionCookieName string        `json:"session_cookie_name" yaml:"session_cookie_name" koanf:"session_cookie_name"`
	SessionDuration   time.Duration `json:"session_duration" yaml:"session_duration" koanf:"session_duration"`
	LockoutThreshold  int           `json:"lockout_threshold" yaml:"lockout_threshold" koanf:"lockout_threshold"`
	LockoutDuration   time.Duration `json:"lockout_duration" yaml:"lockout_duration" koanf:"lockout_duration"`
}

var _ Config = (*AppConfig)(nil)

func (c *AppConfig) GetSigningKey() string { return c.SigningKey }
func (c *AppConfig) GetIssuer() string     { return c.Issuer }

func (c *AppConfig) GetSessionCookieName() string {
	if c.SessionCookieName == "" {
		return DefaultSessionCookieName
	}
	return c.SessionCookieName
}

func (c *AppConfig) GetSessionDuration() time.Duration {
	if c.SessionDuration <= 0 {
		return DefaultSessionDuration
	}
	return c.SessionDuration
}

func (c *AppConfig) GetLockoutThreshold() int {
	if c.LockoutThreshold <= 0 {
		return DefaultLockoutThreshold
	}
	return c.LockoutThreshold
}

func (c *AppConfig) GetLockoutDuration() time.Duration {
	if c.LockoutDuration <= 0 {
		return DefaultLockoutDuration
	}
	return c.LockoutDuration
}

// LoadConfig reads the YAML file at configPath, if it exists, and then
// overlays AUTH_ prefixed environment variables. AUTH_SIGNING_KEY maps to
// signing_key and so on.
func LoadConfig(configPath string) (*AppConfig, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
					WithMetadata(map[string]any{"path": configPath})
			}
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load environment variables")
	}

	cfg := &AppConfig{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to unmarshal config")
	}

	if cfg.SigningKey == "" {
		return nil, goerrors.New("signing key is required", goerrors.CategoryBadInput)
	}

	return cfg, nil
}
