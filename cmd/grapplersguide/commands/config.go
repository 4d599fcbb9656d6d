package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/manifest"
	"grapplersguide-dl/internal/pipelines"
	"grapplersguide-dl/internal/scrapers/grapplersguide"
	"grapplersguide-dl/pkg/configutil"

	"github.com/spf13/cobra"
)

type Config struct {
	Username          string          `json:"username"`
	Password          string          `json:"password"`
	BaseUrl           string          `json:"base_url"`
	LoginPath         string          `json:"login_path"`
	ExpertPattern     string          `json:"expert_pattern"`
	CoursePattern     string          `json:"course_pattern"`
	OutputDir         string          `json:"output_dir"`
	Flat              bool            `json:"flat"`
	IndexMode         string          `json:"index_mode"`
	Concurrency       int             `json:"concurrency"`
	RequestsPerSecond float64         `json:"requests_per_second"`
	Retries           int             `json:"retries"`
	TimeoutSeconds    int             `json:"timeout_seconds"`
	Manifest          manifest.Config `json:"manifest"`
}

func defaultConfig() Config {
	return Config{
		BaseUrl:           grapplersguide.DefaultBaseUrl,
		LoginPath:         grapplersguide.DefaultLoginPath,
		OutputDir:         "downloads",
		IndexMode:         pipelines.IndexPerCourse.String(),
		Concurrency:       4,
		RequestsPerSecond: 2,
		Retries:           3,
		TimeoutSeconds:    30,
	}
}

func (c Config) Layout() catalog.Layout {
	if c.Flat {
		return catalog.LayoutFlat
	}
	return catalog.LayoutNested
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func registerConfigFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("username", "", "The account to log in with.")
	flags.String("password", "", "The password of the account.")
	flags.String("base-url", "", "The site to crawl, thestrikersguide.com and theweaponsguide.com work too.")
	flags.String("expert", "", "Only crawl experts whose name matches this case-insensitive pattern.")
	flags.String("course", "", "Only crawl courses whose title matches this case-insensitive pattern.")
	flags.StringP("output", "o", "", "The directory videos and the index are written to.")
	flags.Bool("flat", false, "Put every video directly in the output directory.")
	flags.String("index-mode", "", "per-course writes a header for every course, legacy only for the first.")
	flags.Int("concurrency", 0, "How many requests or downloads may be in flight at once.")
	flags.Float64("rps", 0, "The max amount of page requests per second.")
	flags.Int("retries", 0, "How many times a failed request or download is retried.")
	flags.String("manifest", "", "The manifest database, defaults to <output>/manifest.db.")
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	var err error
	str := func(name string, dest *string) {
		if err == nil && flags.Changed(name) {
			*dest, err = flags.GetString(name)
		}
	}
	str("username", &cfg.Username)
	str("password", &cfg.Password)
	str("base-url", &cfg.BaseUrl)
	str("expert", &cfg.ExpertPattern)
	str("course", &cfg.CoursePattern)
	str("output", &cfg.OutputDir)
	str("index-mode", &cfg.IndexMode)
	str("manifest", &cfg.Manifest.File)

	if err == nil && flags.Changed("flat") {
		cfg.Flat, err = flags.GetBool("flat")
	}
	if err == nil && flags.Changed("concurrency") {
		cfg.Concurrency, err = flags.GetInt("concurrency")
	}
	if err == nil && flags.Changed("rps") {
		cfg.RequestsPerSecond, err = flags.GetFloat64("rps")
	}
	if err == nil && flags.Changed("retries") {
		cfg.Retries, err = flags.GetInt("retries")
	}
	if err == nil && flags.Changed("manifest") {
		// a file on the command line wins over a remote database in the config
		cfg.Manifest.Url = ""
	}
	return err
}

// loadConfig reads the config file at `path`, fills in defaults and applies
// the command line flags. A missing config file is not an error.
func loadConfig(cmd *cobra.Command, path string) (Config, error) {
	cfg, err := configutil.ReadConfigOnto(path, defaultConfig())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	err = applyFlags(cmd, &cfg)
	if err != nil {
		return Config{}, err
	}

	if cfg.Manifest.File == "" && cfg.Manifest.Url == "" {
		cfg.Manifest.File = filepath.Join(cfg.OutputDir, "manifest.db")
	}
	_, err = pipelines.ParseIndexMode(cfg.IndexMode)
	if err != nil {
		return Config{}, err
	}
	if cfg.Retries < 0 {
		return Config{}, fmt.Errorf("retries must not be negative, got %d", cfg.Retries)
	}
	if cfg.Concurrency < 1 {
		return Config{}, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}

	return cfg, nil
}

func requireCredentials(cfg Config) error {
	if cfg.Username == "" || cfg.Password == "" {
		return fmt.Errorf("a username and password are required, set them in %s or with --username and --password", configPath)
	}
	return nil
}
