package grove

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/sync/errgroup"
)

// ErrAssetTimeout marks an asset that did not become ready in time.
var ErrAssetTimeout = errors.New("grove: asset load timed out")

// AssetKind is derived from a file's extension.
type AssetKind uint8

const (
	AssetData  AssetKind = iota // raw bytes
	AssetImage                  // .png, .jpg, .jpeg, .gif
	AssetFont                   // .ttf, .otf
)

func assetKindOf(p string) AssetKind {
	switch strings.ToLower(path.Ext(p)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return AssetImage
	case ".ttf", ".otf":
		return AssetFont
	default:
		return AssetData
	}
}

// AssetProgress counts settled assets.
type AssetProgress struct {
	Loaded int
	Failed int
	Total  int
}

// Done reports whether every asset has settled.
func (p AssetProgress) Done() bool {
	return p.Loaded+p.Failed == p.Total
}

// AssetLoaderConfig configures NewAssetLoader. Zero fields take defaults.
type AssetLoaderConfig struct {
	// PollInterval is the minimum time between readiness checks. Default 25ms.
	PollInterval time.Duration
	// Timeout bounds each asset from the start of Load. Default 5s.
	Timeout time.Duration
	// Concurrency bounds parallel decoders. Default 4.
	Concurrency int
	// Now replaces time.Now, for tests.
	Now func() time.Time
	// Logger defaults to the package logger.
	Logger *slog.Logger
}

type assetState uint8

const (
	assetPending assetState = iota
	assetLoading
	assetLoaded
	assetFailed
)

type decoded struct {
	img  image.Image
	font *text.GoTextFaceSource
	data []byte
	err  error
}

type assetEntry struct {
	alias string
	path  string
	kind  AssetKind
	state assetState
	err   error
	ready chan decoded
}

// AssetLoader loads images, fonts and data files from an fs.FS. Decoding
// happens on background goroutines; results are collected from Tick, so
// every ebiten image is created on the game thread. It is registered as the
// "assets" service and resolves text font families.
type AssetLoader struct {
	cfg     AssetLoaderConfig
	log     *slog.Logger
	entries []*assetEntry
	byAlias map[string]*assetEntry

	images map[string]*ebiten.Image
	fonts  map[string]*text.GoTextFaceSource
	data   map[string][]byte

	loading  bool
	started  time.Time
	lastPoll time.Time
	progress AssetProgress

	// Progress fires each time an asset settles.
	Progress Signal[AssetProgress]
	// Complete fires once all assets of a Load have settled.
	Complete Signal[AssetProgress]
}

// NewAssetLoader creates an empty loader.
func NewAssetLoader(cfg AssetLoaderConfig) *AssetLoader {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 25 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	return &AssetLoader{
		cfg:     cfg,
		log:     cfg.Logger,
		byAlias: make(map[string]*assetEntry),
		images:  make(map[string]*ebiten.Image),
		fonts:   make(map[string]*text.GoTextFaceSource),
		data:    make(map[string][]byte),
	}
}

// AddFile queues path to be loaded under alias by the next Load. Fonts are
// looked up by alias as their family name.
func (l *AssetLoader) AddFile(alias, path string) {
	if e, ok := l.byAlias[alias]; ok && e.state == assetPending {
		e.path, e.kind = path, assetKindOf(path)
		return
	}
	e := &assetEntry{alias: alias, path: path, kind: assetKindOf(path)}
	l.entries = append(l.entries, e)
	l.byAlias[alias] = e
}

// Load starts decoding every queued file from fsys and returns immediately.
// Completion is reported through the Progress and Complete signals as Tick
// collects results. With nothing queued, Complete fires before Load returns.
func (l *AssetLoader) Load(fsys fs.FS) error {
	if l.loading {
		return fmt.Errorf("%w: assets already loading", ErrBusy)
	}
	var batch []*assetEntry
	for _, e := range l.entries {
		if e.state == assetPending {
			e.state = assetLoading
			e.ready = make(chan decoded, 1)
			batch = append(batch, e)
		}
	}
	l.progress = AssetProgress{Total: len(batch)}
	if len(batch) == 0 {
		l.Complete.Emit(l.progress)
		return nil
	}
	l.loading = true
	l.started = l.cfg.Now()
	l.lastPoll = time.Time{}

	go func() {
		var g errgroup.Group
		g.SetLimit(l.cfg.Concurrency)
		for _, e := range batch {
			g.Go(func() error {
				e.ready <- decodeAsset(fsys, e.path, e.kind)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return nil
}

func decodeAsset(fsys fs.FS, p string, kind AssetKind) decoded {
	raw, err := fs.ReadFile(fsys, p)
	if err != nil {
		return decoded{err: err}
	}
	switch kind {
	case AssetImage:
		img, _, err := image.Decode(bytes.NewReader(raw))
		return decoded{img: img, err: err}
	case AssetFont:
		src, err := text.NewGoTextFaceSource(bytes.NewReader(raw))
		return decoded{font: src, err: err}
	default:
		return decoded{data: raw}
	}
}

// Loading reports whether a Load is in progress.
func (l *AssetLoader) Loading() bool {
	return l.loading
}

// Counts returns the progress of the current or last Load.
func (l *AssetLoader) Counts() AssetProgress {
	return l.progress
}

// Tick polls in-flight assets at most once per poll interval. An asset not
// ready within the timeout is counted as failed.
func (l *AssetLoader) Tick(float64) {
	if !l.loading {
		return
	}
	now := l.cfg.Now()
	if !l.lastPoll.IsZero() && now.Sub(l.lastPoll) < l.cfg.PollInterval {
		return
	}
	l.lastPoll = now
	timedOut := now.Sub(l.started) >= l.cfg.Timeout

	for _, e := range l.entries {
		if e.state != assetLoading {
			continue
		}
		select {
		case res := <-e.ready:
			l.settle(e, res)
		default:
			if timedOut {
				l.settle(e, decoded{err: ErrAssetTimeout})
			}
		}
	}
}

func (l *AssetLoader) settle(e *assetEntry, res decoded) {
	if res.err != nil {
		e.state, e.err = assetFailed, res.err
		l.progress.Failed++
		l.log.Warn("asset failed", "alias", e.alias, "path", e.path, "err", res.err)
	} else {
		e.state = assetLoaded
		l.progress.Loaded++
		switch e.kind {
		case AssetImage:
			l.images[e.alias] = ebiten.NewImageFromImage(res.img)
		case AssetFont:
			l.fonts[e.alias] = res.font
		default:
			l.data[e.alias] = res.data
		}
		l.log.Debug("asset loaded", "alias", e.alias, "path", e.path)
	}
	l.Progress.Emit(l.progress)
	if l.progress.Done() {
		l.loading = false
		l.Complete.Emit(l.progress)
	}
}

// Image returns a loaded image.
func (l *AssetLoader) Image(alias string) (*ebiten.Image, bool) {
	img, ok := l.images[alias]
	return img, ok
}

// Font returns a loaded font face source by family name.
func (l *AssetLoader) Font(family string) (*text.GoTextFaceSource, bool) {
	src, ok := l.fonts[family]
	return src, ok
}

// Data returns the bytes of a loaded data file.
func (l *AssetLoader) Data(alias string) ([]byte, bool) {
	b, ok := l.data[alias]
	return b, ok
}

// Err returns the failure of an asset, or nil.
func (l *AssetLoader) Err(alias string) error {
	if e, ok := l.byAlias[alias]; ok {
		return e.err
	}
	return nil
}

var _ FontResolver = (*AssetLoader)(nil)
