package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"postline/internal/codec"
	"postline/internal/domain"
)

// Config models postline.yml.
type Config struct {
	Notion Notion `yaml:"notion"`
	Posts  Posts  `yaml:"posts"`
	Store  Store  `yaml:"store"`
	Server Server `yaml:"server"`
	Log    Log    `yaml:"log"`
}

type Notion struct {
	APIKey                  string `yaml:"api_key"`
	BaseURL                 string `yaml:"base_url"`
	Version                 string `yaml:"version"`
	PostsDatabaseID         string `yaml:"posts_database_id"`
	DirectoryDatabaseID     string `yaml:"directory_database_id"`
	DirectoryEmailProperty  string `yaml:"directory_email_property"`
	DirectoryPeopleProperty string `yaml:"directory_user_property"`
}

type Posts struct {
	CompletionStatus string       `yaml:"completion_status"`
	Properties       codec.Schema `yaml:"properties"`
}

type Store struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Server struct {
	Addr       string `yaml:"addr"`
	BasePath   string `yaml:"base_path"`
	JWTSecret  string `yaml:"jwt_secret"`
	HookSecret string `yaml:"hook_secret"`
	DevAuth    bool   `yaml:"dev_auth"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Validate checks structure only. Notion credentials are checked lazily by
// the Require methods so that a service can start without them.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("config.store.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config.store.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	if strings.TrimSpace(c.Posts.CompletionStatus) == "" {
		return fmt.Errorf("config.posts.completion_status is required")
	}
	if err := c.Posts.Properties.Validate(); err != nil {
		return fmt.Errorf("config.%w", err)
	}
	if c.Notion.BaseURL != "" && !strings.HasPrefix(c.Notion.BaseURL, "https://") {
		return fmt.Errorf("config.notion.base_url must use https")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	return nil
}

// RequireAPIKey reports a missing integration token.
func (n Notion) RequireAPIKey() error {
	if strings.TrimSpace(n.APIKey) == "" {
		return domain.FailedPrecondition("notion api key is not configured (notion.api_key or POSTLINE_NOTION_API_KEY)")
	}
	return nil
}

// RequirePosts reports a missing token or posts database id.
func (n Notion) RequirePosts() error {
	if err := n.RequireAPIKey(); err != nil {
		return err
	}
	if strings.TrimSpace(n.PostsDatabaseID) == "" {
		return domain.FailedPrecondition("notion posts database id is not configured (notion.posts_database_id or POSTLINE_NOTION_POSTS_DATABASE_ID)")
	}
	return nil
}

// UsesDirectory reports whether identities resolve through a directory database.
func (n Notion) UsesDirectory() bool {
	return strings.TrimSpace(n.DirectoryDatabaseID) != ""
}

// Keys lists the dotted keys accepted by Set, in file order.
var Keys = []string{
	"notion.api_key",
	"notion.base_url",
	"notion.version",
	"notion.posts_database_id",
	"notion.directory_database_id",
	"notion.directory_email_property",
	"notion.directory_user_property",
	"posts.completion_status",
	"store.driver",
	"store.dsn",
	"server.addr",
	"server.base_path",
	"server.jwt_secret",
	"server.hook_secret",
	"server.dev_auth",
	"log.level",
	"log.format",
}

// Set overrides a single value by dotted key, as bound from flags and
// environment.
func (c *Config) Set(key, value string) error {
	fields := map[string]*string{
		"notion.api_key":                  &c.Notion.APIKey,
		"notion.base_url":                 &c.Notion.BaseURL,
		"notion.version":                  &c.Notion.Version,
		"notion.posts_database_id":        &c.Notion.PostsDatabaseID,
		"notion.directory_database_id":    &c.Notion.DirectoryDatabaseID,
		"notion.directory_email_property": &c.Notion.DirectoryEmailProperty,
		"notion.directory_user_property":  &c.Notion.DirectoryPeopleProperty,
		"posts.completion_status":         &c.Posts.CompletionStatus,
		"store.driver":                    &c.Store.Driver,
		"store.dsn":                       &c.Store.DSN,
		"server.addr":                     &c.Server.Addr,
		"server.base_path":                &c.Server.BasePath,
		"server.jwt_secret":               &c.Server.JWTSecret,
		"server.hook_secret":              &c.Server.HookSecret,
		"log.level":                       &c.Log.Level,
		"log.format":                      &c.Log.Format,
	}
	if key == "server.dev_auth" {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Server.DevAuth = v
		return nil
	}
	field, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key %s", key)
	}
	*field = value
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "postline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	cfg.Posts.Properties = cfg.Posts.Properties.WithDefaults()
	return &cfg
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with postline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err != nil {
		if _, statErr := os.Stat(Path(workspace)); os.IsNotExist(statErr) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.Posts.Properties = cfg.Posts.Properties.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `notion:
  # Integration token. Prefer POSTLINE_NOTION_API_KEY.
  api_key: ""
  base_url: https://api.notion.com/v1
  version: "2022-06-28"
  posts_database_id: ""
  # When set, identities resolve through this database instead of the
  # workspace user list.
  directory_database_id: ""
  directory_email_property: Email
  directory_user_property: User

posts:
  completion_status: complete
  properties:
    title: タイトル
    first_check: 1st check
    second_check: Check ②
    canva_url: Canva URL
    category: Category
    second_check_assignees: Check ② 担当
    authors: 著者
    files: ファイル&メディア
    status: ステータス
    image_path: 画像パス

store:
  driver: sqlite
  dsn: ""

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret: ""
  hook_secret: ""
  dev_auth: false

log:
  level: info
  format: text
`
