package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GeminiBaseURL  string
	GeminiAPIKey   string
	GeminiProxyURL string
	Model          string
	ListenAddr     string
	RequestTimeout time.Duration
	// Retrieval
	Stores         []string
	MetadataFilter string
	AllowedStores  []string
	// Proxy
	ForwardHeaders []string
	MediaAckText   string
	// A2A
	A2AEnabled bool
	A2APort    int
	AgentName  string
	AgentDesc  string

	// ConfigFile is the YAML file the values above were overlaid from, if any.
	ConfigFile string
}

// fileConfig is the YAML overlay. Unset keys leave the flag/env value alone.
type fileConfig struct {
	GeminiBaseURL  *string   `yaml:"gemini_base_url"`
	GeminiAPIKey   *string   `yaml:"gemini_api_key"`
	GeminiProxyURL *string   `yaml:"gemini_proxy_url"`
	Model          *string   `yaml:"model"`
	ListenAddr     *string   `yaml:"listen_addr"`
	RequestTimeout *string   `yaml:"request_timeout"`
	Stores         *[]string `yaml:"stores"`
	MetadataFilter *string   `yaml:"metadata_filter"`
	AllowedStores  *[]string `yaml:"allowed_stores"`
	ForwardHeaders *[]string `yaml:"forward_headers"`
	MediaAckText   *string   `yaml:"media_ack_text"`
	A2A            *struct {
		Enabled   *bool   `yaml:"enabled"`
		Port      *int    `yaml:"port"`
		AgentName *string `yaml:"agent_name"`
		AgentDesc *string `yaml:"agent_desc"`
	} `yaml:"a2a"`
}

// Load reads .env, then parses the process command line.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse registers the settings on flags, parses args and applies the optional YAML
// file. Flags given on the command line always win over the file.
func Parse(flags *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	var stores, allowed, forward string

	flags.StringVar(&cfg.GeminiBaseURL, "gemini-base-url", getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "Generation endpoint base URL")
	flags.StringVar(&cfg.GeminiAPIKey, "gemini-api-key", getEnv("GEMINI_API_KEY", ""), "API key for the generation endpoint (callers may override per request)")
	flags.StringVar(&cfg.GeminiProxyURL, "gemini-proxy-url", getEnv("GEMINI_PROXY_URL", ""), "HTTP/HTTPS proxy URL for upstream requests (e.g. http://proxy:8080)")
	flags.StringVar(&cfg.Model, "model", getEnv("GEMINI_MODEL", "gemini-2.5-flash"), "Default model")
	flags.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", ":8080"), "Proxy listen address")

	timeoutStr := getEnv("REQUEST_TIMEOUT", "120s")
	defaultTimeout, _ := time.ParseDuration(timeoutStr)
	if defaultTimeout == 0 {
		defaultTimeout = 120 * time.Second
	}
	flags.DurationVar(&cfg.RequestTimeout, "request-timeout", defaultTimeout, "Upstream round-trip timeout")

	flags.StringVar(&stores, "stores", getEnv("FILE_SEARCH_STORES", ""), "Comma-separated default retrieval stores")
	flags.StringVar(&cfg.MetadataFilter, "metadata-filter", getEnv("METADATA_FILTER", ""), "Default retrieval metadata filter")
	flags.StringVar(&allowed, "allowed-stores", getEnv("ALLOWED_STORES", ""), "Comma-separated glob patterns requested stores must match")
	flags.StringVar(&forward, "forward-headers", getEnv("FORWARD_HEADERS", ""), "Comma-separated caller headers forwarded upstream")
	flags.StringVar(&cfg.MediaAckText, "media-ack-text", getEnv("MEDIA_ACK_TEXT", ""), "Text sent after media returned by a tool")

	flags.BoolVar(&cfg.A2AEnabled, "a2a", getEnvBool("A2A_ENABLED", false), "Enable A2A server alongside the proxy")
	flags.IntVar(&cfg.A2APort, "a2a-port", getEnvInt("A2A_PORT", 8000), "A2A server listen port")
	flags.StringVar(&cfg.AgentName, "agent-name", getEnv("AGENT_NAME", "khasigpt-agent"), "A2A AgentCard name")
	flags.StringVar(&cfg.AgentDesc, "agent-desc", getEnv("AGENT_DESC", "Retrieval-grounded generation agent exposed via A2A protocol"), "A2A AgentCard description")

	flags.StringVar(&cfg.ConfigFile, "config", getEnv("CONFIG_FILE", ""), "Optional YAML config file")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	cfg.Stores = splitList(stores)
	cfg.AllowedStores = splitList(allowed)
	cfg.ForwardHeaders = splitList(forward)

	if cfg.ConfigFile != "" {
		set := map[string]bool{}
		flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := cfg.overlay(cfg.ConfigFile, set); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) overlay(path string, set map[string]bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := decodeYAMLStrict(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	str := func(flagName string, dst *string, v *string) {
		if v != nil && !set[flagName] {
			*dst = *v
		}
	}
	list := func(flagName string, dst *[]string, v *[]string) {
		if v != nil && !set[flagName] {
			*dst = cleanList(*v)
		}
	}

	str("gemini-base-url", &c.GeminiBaseURL, fc.GeminiBaseURL)
	str("gemini-api-key", &c.GeminiAPIKey, fc.GeminiAPIKey)
	str("gemini-proxy-url", &c.GeminiProxyURL, fc.GeminiProxyURL)
	str("model", &c.Model, fc.Model)
	str("listen-addr", &c.ListenAddr, fc.ListenAddr)
	str("metadata-filter", &c.MetadataFilter, fc.MetadataFilter)
	str("media-ack-text", &c.MediaAckText, fc.MediaAckText)
	list("stores", &c.Stores, fc.Stores)
	list("allowed-stores", &c.AllowedStores, fc.AllowedStores)
	list("forward-headers", &c.ForwardHeaders, fc.ForwardHeaders)

	if fc.RequestTimeout != nil && !set["request-timeout"] {
		d, err := time.ParseDuration(*fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("config file request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	if a := fc.A2A; a != nil {
		if a.Enabled != nil && !set["a2a"] {
			c.A2AEnabled = *a.Enabled
		}
		if a.Port != nil && !set["a2a-port"] {
			c.A2APort = *a.Port
		}
		str("agent-name", &c.AgentName, a.AgentName)
		str("agent-desc", &c.AgentDesc, a.AgentDesc)
	}
	return nil
}

func decodeYAMLStrict(b []byte, out *fileConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	return cleanList(strings.Split(s, ","))
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
