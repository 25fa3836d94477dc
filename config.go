package grove

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
)

// ErrInvalidConfig is returned by AppConfig.Validate.
var ErrInvalidConfig = errors.New("grove: invalid app config")

// AppConfig is the JSON document describing an application: window settings,
// the asset files to load, and the scene to build once they are loaded.
type AppConfig struct {
	Settings AppSettings       `json:"settings"`
	Assets   map[string]string `json:"assets,omitempty"`
	Scene    *Descriptor       `json:"scene"`
}

// AppSettings are the window and debug settings of an AppConfig.
type AppSettings struct {
	Title      string `json:"title,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TPS        int    `json:"tps,omitempty"`
	Background string `json:"background,omitempty"`
	ShowFPS    bool   `json:"showFps,omitempty"`
	Debug      bool   `json:"debug,omitempty"`
}

// LoadAppConfig decodes and validates an AppConfig.
func LoadAppConfig(r io.Reader) (*AppConfig, error) {
	var cfg AppConfig
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("grove: decode app config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAppConfigFile reads name from fsys with LoadAppConfig.
func LoadAppConfigFile(fsys fs.FS, name string) (*AppConfig, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("grove: open app config: %w", err)
	}
	defer f.Close()
	return LoadAppConfig(f)
}

// Validate reports every problem found, joined.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Settings.Width <= 0 || c.Settings.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: window size %dx%d must be positive",
			ErrInvalidConfig, c.Settings.Width, c.Settings.Height))
	}
	if c.Settings.TPS < 0 {
		errs = append(errs, fmt.Errorf("%w: negative tps", ErrInvalidConfig))
	}
	if c.Settings.Background != "" {
		var bg Color
		if err := bg.DecodeValue(c.Settings.Background); err != nil {
			errs = append(errs, fmt.Errorf("%w: background: %v", ErrInvalidConfig, err))
		}
	}
	for _, alias := range c.assetAliases() {
		if alias == "" || c.Assets[alias] == "" {
			errs = append(errs, fmt.Errorf("%w: asset %q has an empty alias or path", ErrInvalidConfig, alias))
		}
	}
	if c.Scene == nil {
		errs = append(errs, fmt.Errorf("%w: scene root missing", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

func (c *AppConfig) assetAliases() []string {
	aliases := make([]string, 0, len(c.Assets))
	for a := range c.Assets {
		aliases = append(aliases, a)
	}
	slices.Sort(aliases)
	return aliases
}

// RunConfig returns the window settings for Run.
func (c *AppConfig) RunConfig() RunConfig {
	return RunConfig{
		Title:   c.Settings.Title,
		Width:   c.Settings.Width,
		Height:  c.Settings.Height,
		TPS:     c.Settings.TPS,
		ShowFPS: c.Settings.ShowFPS,
	}
}

// Start applies cfg to the app, loads its assets from fsys and builds the
// scene once every asset has settled. With no assets the scene is built
// before Start returns.
func (a *App) Start(cfg *AppConfig, fsys fs.FS) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Settings.Background != "" {
		_ = a.ClearColor.DecodeValue(cfg.Settings.Background)
	}
	if cfg.Settings.Debug {
		a.SetDebugMode(true)
	}
	for _, alias := range cfg.assetAliases() {
		a.Assets.AddFile(alias, cfg.Assets[alias])
	}

	var loadErr error
	var h CallbackHandle
	h = a.Assets.Complete.Connect(func(p AssetProgress) {
		h.Remove()
		if p.Failed > 0 {
			a.Manager.log.Warn("assets failed to load", "failed", p.Failed, "total", p.Total)
		}
		loadErr = a.Manager.LoadScene(*cfg.Scene)
		if loadErr != nil {
			a.Manager.log.Error("scene load failed", "err", loadErr)
		}
	})
	if err := a.Assets.Load(fsys); err != nil {
		h.Remove()
		return err
	}
	return loadErr
}
