package lbanalyzer

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Lookup providers.
const (
	ProviderIPInfo = "ipinfo"
	ProviderWhois  = "whois"
	ProviderGeoIP  = "geoip"
	ProviderNone   = "none"
)

const (
	// DefaultOutput is the report written in the working directory.
	DefaultOutput = "out.csv"
	// DefaultTimeout bounds each lookup.
	DefaultTimeout = 10 * time.Second
	// EnvPrefix prefixes the environment variables for every setting,
	// for example LBANALYZER_THRESHOLD.
	EnvPrefix = "LBANALYZER"
)

var (
	ErrMissingLogDir   = errors.New("LOGDIR is not set: point it at the directory holding the load balancer log files")
	ErrMissingToken    = errors.New("IPINFO_TOKEN is not set: get a token from https://ipinfo.io/")
	ErrUnknownProvider = errors.New("unknown lookup provider")
)

// Config is everything a run needs. It is read once at start and passed
// down explicitly.
type Config struct {
	LogDir    string        `mapstructure:"logdir"`
	Out       string        `mapstructure:"out"`
	Threshold int           `mapstructure:"threshold"`
	Limit     int           `mapstructure:"limit"`
	Provider  string        `mapstructure:"provider"`
	Header    bool          `mapstructure:"header"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Ignore    []string      `mapstructure:"ignore"`
	IPInfo    IPInfoConfig  `mapstructure:"ipinfo"`
	Whois     WhoisServers  `mapstructure:"whois"`
	GeoIP     GeoIPConfig   `mapstructure:"geoip"`
	Log       LogConfig     `mapstructure:"log"`
}

type IPInfoConfig struct {
	Token   string       `mapstructure:"token"`
	BaseURL string       `mapstructure:"base_url"`
	Fields  IPInfoFields `mapstructure:"fields"`
}

type GeoIPConfig struct {
	CityDB string `mapstructure:"city_db"`
	ASNDB  string `mapstructure:"asn_db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// NewViper returns a viper instance with every default set and the
// environment bound. LOGDIR and IPINFO_TOKEN are read under their plain
// names as well as with the LBANALYZER_ prefix.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("logdir", "LOGDIR", EnvPrefix+"_LOGDIR")
	v.BindEnv("ipinfo.token", "IPINFO_TOKEN", EnvPrefix+"_IPINFO_TOKEN")

	servers := DefaultWhoisServers()
	v.SetDefault("out", DefaultOutput)
	v.SetDefault("threshold", DefaultThreshold)
	v.SetDefault("provider", ProviderIPInfo)
	v.SetDefault("header", false)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("ignore", []string{})
	v.SetDefault("ipinfo.base_url", DefaultIPInfoURL)
	v.SetDefault("ipinfo.fields.country", DefaultIPInfoFields.Country)
	v.SetDefault("ipinfo.fields.city", DefaultIPInfoFields.City)
	v.SetDefault("ipinfo.fields.hostname", DefaultIPInfoFields.Hostname)
	v.SetDefault("ipinfo.fields.org", DefaultIPInfoFields.Org)
	v.SetDefault("whois.default", servers.Default)
	v.SetDefault("whois.domains", servers.Domains)
	v.SetDefault("whois.ip.host", servers.IP.Host)
	v.SetDefault("whois.ip.query", servers.IP.Query)
	v.SetDefault("whois.referrals", servers.Referrals)
	v.SetDefault("geoip.city_db", "")
	v.SetDefault("geoip.asn_db", "")
	v.SetDefault("log.level", logrus.InfoLevel.String())
	v.SetDefault("log.file", "")
	return v
}

// LoadConfig reads the optional config file named by the "config" key,
// decodes v into a Config and validates it. When no limit was given, the
// provider's default applies.
func LoadConfig(v *viper.Viper) (Config, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if v.IsSet("limit") {
		cfg.Limit = v.GetInt("limit")
	} else {
		cfg.Limit = DefaultLimit(cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultLimit is the enrich limit used for provider when none is
// configured.
func DefaultLimit(provider string) int {
	if provider == ProviderWhois {
		return DefaultWhoisEnrichLimit
	}
	return DefaultEnrichLimit
}

// Validate reports the first problem that would stop a run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.LogDir) == "" {
		return ErrMissingLogDir
	}
	if strings.TrimSpace(c.Out) == "" {
		return errors.New("output path is empty")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %d", c.Threshold)
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if c.Whois.Referrals < 0 {
		return fmt.Errorf("whois referrals must not be negative, got %d", c.Whois.Referrals)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	switch c.Provider {
	case ProviderIPInfo:
		if strings.TrimSpace(c.IPInfo.Token) == "" {
			return ErrMissingToken
		}
	case ProviderGeoIP:
		if c.GeoIP.CityDB == "" {
			return errors.New("geoip provider needs geoip.city_db")
		}
	case ProviderWhois, ProviderNone:
	default:
		return fmt.Errorf("%w %q (want %s, %s, %s or %s)", ErrUnknownProvider, c.Provider,
			ProviderIPInfo, ProviderWhois, ProviderGeoIP, ProviderNone)
	}
	if _, err := c.Networks(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Networks returns the merged ignore networks.
func (c Config) Networks() ([]netip.Prefix, error) {
	return ParseNetworks(c.Ignore)
}
