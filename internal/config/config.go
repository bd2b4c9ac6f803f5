// Load envs from .env
// Load YAML config
// Override with env vars
// Provide default values
// Validate config (fail fast on missing secrets)

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

const (
	TransportBrowser = "browser"
	TransportHTTP    = "http"

	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	UpdatesPolling = "polling"
	UpdatesWebhook = "webhook"
	UpdatesOff     = "off"
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Site     SiteConfig     `yaml:"site"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Browser  BrowserConfig  `yaml:"browser"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type TelegramConfig struct {
	Token         string         `yaml:"token" validate:"required"`
	AdminIDs      []int64        `yaml:"admin_ids" validate:"required,min=1,dive,ne=0"`
	DeleteButton  *bool          `yaml:"delete_button"`
	SendInterval  *time.Duration `yaml:"send_interval" validate:"omitempty,gte=0"`
	Updates       string         `yaml:"updates" validate:"oneof=polling webhook off"`
	WebhookURL    string         `yaml:"webhook_url" validate:"required_if=Updates webhook"`
	WebhookSecret string         `yaml:"webhook_secret" validate:"required_if=Updates webhook,max=256"`
}

// ShowDeleteButton reports whether notifications carry the "Delete Message" control.
func (t TelegramConfig) ShowDeleteButton() bool {
	return t.DeleteButton == nil || *t.DeleteButton
}

// Throttle is the minimum gap between two sends. Unset means one second; an
// explicit 0 disables throttling.
func (t TelegramConfig) Throttle() time.Duration {
	if t.SendInterval == nil {
		return time.Second
	}
	return *t.SendInterval
}

type SiteConfig struct {
	Origin    string    `yaml:"origin" validate:"required,url"`
	IndexURL  string    `yaml:"index_url" validate:"required,url"`
	Selectors Selectors `yaml:"selectors"`
}

// Selectors are the CSS selectors used against the listings index and detail pages.
type Selectors struct {
	Card          string `yaml:"card" validate:"required"`
	CardLink      string `yaml:"card_link" validate:"required"`
	Title         string `yaml:"title" validate:"required"`
	Description   string `yaml:"description" validate:"required"`
	PublishDate   string `yaml:"publish_date" validate:"required"`
	EndDateItem   string `yaml:"end_date_item" validate:"required"`
	EndDateValue  string `yaml:"end_date_value" validate:"required"`
	Price         string `yaml:"price" validate:"required"`
	Poster        string `yaml:"poster" validate:"required"`
	SkillsWrapper string `yaml:"skills_wrapper" validate:"required"`
	SkillTag      string `yaml:"skill_tag" validate:"required"`
}

type FetchConfig struct {
	Transport            string        `yaml:"transport" validate:"oneof=browser http"`
	BackoffAfterNavigate *bool         `yaml:"backoff_after_navigate"`
	BackoffBase          time.Duration `yaml:"backoff_base" validate:"gte=0"`
	MaxAttempts          int           `yaml:"max_attempts" validate:"gte=1"`
	Timeout              time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent            string        `yaml:"user_agent"`
}

// WaitAfterNavigate reports whether the retry loop waits between navigation and
// snapshot. Only a stateful browser session benefits from it, so it defaults to
// on for the browser transport and off for plain HTTP.
func (f FetchConfig) WaitAfterNavigate() bool {
	if f.BackoffAfterNavigate != nil {
		return *f.BackoffAfterNavigate
	}
	return f.Transport == TransportBrowser
}

type BrowserConfig struct {
	Headless      *bool  `yaml:"headless"`
	Engine        string `yaml:"engine" validate:"oneof=firefox chromium"`
	CookiesPath   string `yaml:"cookies_path"`
	ScreenshotDir string `yaml:"screenshot_dir"`
	HumanScroll   bool   `yaml:"human_scroll"`
}

func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

type PipelineConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

type StoreConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=file redis postgres"`
	Path        string `yaml:"path" validate:"required_if=Backend file"`
	RedisURL    string `yaml:"redis_url" validate:"required_if=Backend redis"`
	RedisKey    string `yaml:"redis_key"`
	DatabaseURL string `yaml:"database_url" validate:"required_if=Backend postgres"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultSelectors match the LaborX markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:          ".root.job-card.child-card",
		CardLink:      ".job-title.job-link.row",
		Title:         ".job-name",
		Description:   ".description",
		PublishDate:   ".publish-date",
		EndDateItem:   ".info-item.day-info",
		EndDateValue:  ".gray-info",
		Price:         ".info-value",
		Poster:        ".user-name.link",
		SkillsWrapper: ".skills-container",
		SkillTag:      ".tag.clickable",
	}
}

// Load reads .env, then the YAML file at path (a missing file is fine), then
// applies env overrides and defaults and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	//Override with env vars
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}

	if raw := os.Getenv("TELEGRAM_ADMIN_IDS"); raw != "" {
		ids, err := ParseAdminIDs(raw)
		if err != nil {
			return err
		}
		c.Telegram.AdminIDs = ids
	}

	if secret := os.Getenv("TELEGRAM_WEBHOOK_SECRET"); secret != "" {
		c.Telegram.WebhookSecret = secret
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Store.RedisURL = url
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Store.DatabaseURL = url
	}

	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultSelectors()
	sel := &c.Site.Selectors
	setDefault(&sel.Card, def.Card)
	setDefault(&sel.CardLink, def.CardLink)
	setDefault(&sel.Title, def.Title)
	setDefault(&sel.Description, def.Description)
	setDefault(&sel.PublishDate, def.PublishDate)
	setDefault(&sel.EndDateItem, def.EndDateItem)
	setDefault(&sel.EndDateValue, def.EndDateValue)
	setDefault(&sel.Price, def.Price)
	setDefault(&sel.Poster, def.Poster)
	setDefault(&sel.SkillsWrapper, def.SkillsWrapper)
	setDefault(&sel.SkillTag, def.SkillTag)

	setDefault(&c.Site.Origin, "https://laborx.com")
	setDefault(&c.Site.IndexURL, strings.TrimRight(c.Site.Origin, "/")+"/jobs")

	setDefault(&c.Telegram.Updates, UpdatesPolling)

	setDefault(&c.Fetch.Transport, TransportBrowser)
	if c.Fetch.BackoffBase == 0 {
		c.Fetch.BackoffBase = time.Second
	}
	if c.Fetch.MaxAttempts == 0 {
		c.Fetch.MaxAttempts = 4
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}

	setDefault(&c.Browser.Engine, "firefox")

	if c.Pipeline.Interval == 0 {
		c.Pipeline.Interval = 180 * time.Second
	}

	setDefault(&c.Store.Backend, StoreFile)
	setDefault(&c.Store.Path, "links.txt")
	setDefault(&c.Store.RedisKey, "laborx:known")

	setDefault(&c.Server.Port, "8080")

	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Format, "text")
}

// Validate checks required secrets and enum fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseAdminIDs parses a comma-separated list of Telegram chat ids.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
