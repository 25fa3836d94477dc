// Command grovedump builds the scene of an app config without opening a
// window and prints the live tree, serialized back to scene JSON or as the
// inspector outline.
//
//	grovedump -config app.json [-dir assets] [-outline] [-v]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phanxgames/grove"
	"github.com/phanxgames/grove/inspector"
)

func main() {
	configPath := flag.String("config", "app.json", "app config file")
	dir := flag.String("dir", "", "asset directory (defaults to the config's directory)")
	outline := flag.Bool("outline", false, "print the inspector outline instead of scene JSON")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	grove.SetLogger(logger)

	if err := run(*configPath, *dir, *outline, logger); err != nil {
		fmt.Fprintln(os.Stderr, "grovedump:", err)
		os.Exit(1)
	}
}

func run(configPath, dir string, outline bool, logger *slog.Logger) error {
	if dir == "" {
		dir = filepath.Dir(configPath)
	}
	f, err := os.Open(configPath)
	if err != nil {
		return err
	}
	cfg, err := grove.LoadAppConfig(f)
	f.Close()
	if err != nil {
		return err
	}

	app := grove.NewApp(grove.NewRuntime(grove.RuntimeConfig{Logger: logger}))
	defer app.Manager.Teardown()
	if err := app.Start(cfg, os.DirFS(dir)); err != nil {
		return err
	}
	// Assets settle on the tick thread.
	for app.Assets.Loading() {
		app.Step(1.0 / 60)
		time.Sleep(5 * time.Millisecond)
	}
	if app.Manager.State() != grove.StateRunning {
		return errors.New("scene did not load")
	}
	app.Step(0)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if !outline {
		return enc.Encode(app.Manager.Serialize())
	}

	insp := inspector.New(inspector.NewBus(), inspector.Config{})
	stage := app.Manager.Root().Node
	insp.RunHooks(inspector.BeforeRender, stage, nil)
	return enc.Encode(expandAll(insp.Outliner, stage))
}

func expandAll(o *inspector.Outliner, n *grove.Node) *inspector.TreeNode {
	o.Expand(o.ID(n))
	for _, c := range n.Children() {
		expandAll(o, c)
	}
	return o.Serialize(n)
}
