package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/engine"
	"github.com/vk/rulegrid/internal/fsutil"
	"github.com/vk/rulegrid/internal/hydration"
	"github.com/vk/rulegrid/internal/scheduler"
	"github.com/vk/rulegrid/internal/watch"
	"golang.org/x/sync/errgroup"
)

// Command names understood by Run.
const (
	CmdList  = "list"
	CmdShow  = "show"
	CmdDeps  = "deps"
	CmdDot   = "dot"
	CmdWatch = "watch"
)

// Command is one invocation: a command name and the address specs it
// applies to.
//
// A spec is either an address (`//pkg:name`, `pkg:name`, `pkg`), every
// record of one directory (`pkg:`), or every record below a directory
// (`pkg::`). The root directory is written `:` and `::`.
type Command struct {
	Name  string
	Specs []string
}

// Run executes cmd and writes its output to out. Logs go to the App's own
// writer.
func (a *App) Run(ctx context.Context, cmd Command, out io.Writer) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", cmd.Name, "specs", cmd.Specs)

	if _, err := a.startHealthCheckServer(); err != nil {
		return err
	}

	a.logger.Info("🚀 Starting.", "command", cmd.Name, "root", a.config.Root)
	var err error
	if cmd.Name == CmdWatch {
		err = a.watch(ctx, cmd.Specs, out)
	} else {
		err = a.runOnce(ctx, cmd, out)
	}
	if err != nil {
		a.logTraceback(err)
		return err
	}
	a.logger.Info("🏁 Finished.", "command", cmd.Name, "nodes", a.scheduler.GraphLen())
	return nil
}

func (a *App) runOnce(ctx context.Context, cmd Command, out io.Writer) error {
	addrs, err := a.resolveSpecs(ctx, cmd.Specs)
	if err != nil {
		return err
	}
	a.logger.Debug("Specs resolved.", "addresses", len(addrs))

	switch cmd.Name {
	case CmdList:
		for _, addr := range addrs {
			fmt.Fprintln(out, addr.String())
		}
	case CmdShow:
		structs, err := scheduler.Run[hydration.HydratedStructs](ctx, a.scheduler, addrs)
		if err != nil {
			return err
		}
		for i, hs := range structs {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "# %s\n", hs.Address)
			if _, err := out.Write(hs.Render()); err != nil {
				return err
			}
		}
	case CmdDeps:
		closure, err := scheduler.Run[hydration.TransitiveHydratedStructs](ctx, a.scheduler, addrs)
		if err != nil {
			return err
		}
		for _, hs := range closure.Closure {
			fmt.Fprintln(out, hs.Address.String())
		}
	case CmdDot:
		if _, err := scheduler.Run[hydration.HydratedStructs](ctx, a.scheduler, addrs); err != nil {
			return err
		}
		return a.scheduler.WriteDot(out)
	default:
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
	return nil
}

// watch runs list on every change below the build root until ctx is
// done. Failures of a single run are logged, not returned.
func (a *App) watch(ctx context.Context, specs []string, out io.Writer) error {
	changed := make(chan struct{}, 1)
	w, err := watch.New(a.config.Root, a.scheduler, watch.OnFlush(func(paths []string, removed int) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	rerun := func() {
		if err := a.runOnce(ctx, Command{Name: CmdList, Specs: specs}, out); err != nil {
			a.logger.Error("❌ Run failed.", "error", err)
			a.logTraceback(err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	g.Go(func() error {
		rerun()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				rerun()
			}
		}
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// resolveSpecs expands specs into addresses, in spec order and without
// duplicates.
func (a *App) resolveSpecs(ctx context.Context, specs []string) (hydration.Addresses, error) {
	// Each spec expands to either one address or a run of directories.
	type expansion struct {
		addr       address.Address
		start, end int
	}
	plan := make([]expansion, 0, len(specs))
	var reqs []scheduler.Request
	product := a.scheduler.Product(reflect.TypeFor[hydration.Addresses]())
	addDir := func(d string) {
		reqs = append(reqs, scheduler.Request{Product: product, Params: []any{hydration.Dir(d)}})
	}

	for _, spec := range specs {
		dir, recursive, isDir := dirSpec(spec)
		if !isDir {
			addr, err := address.Parse(spec, "")
			if err != nil {
				return nil, err
			}
			plan = append(plan, expansion{addr: addr})
			continue
		}
		e := expansion{start: len(reqs)}
		if recursive {
			found, err := fsutil.FindDirs(filepath.Join(a.config.Root, filepath.FromSlash(dir)), a.config.Patterns, a.config.Ignores)
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", spec, err)
			}
			for _, sub := range found {
				addDir(path.Join(dir, sub))
			}
		} else {
			addDir(dir)
		}
		e.end = len(reqs)
		plan = append(plan, e)
	}

	// Directories resolve concurrently.
	results, err := a.scheduler.Execute(ctx, reqs...)
	if err != nil {
		return nil, err
	}

	var out hydration.Addresses
	seen := make(map[address.Address]bool)
	add := func(addr address.Address) {
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	for _, e := range plan {
		if !e.addr.IsZero() {
			add(e.addr)
			continue
		}
		for _, r := range results[e.start:e.end] {
			for _, addr := range r.Value.(hydration.Addresses) {
				add(addr)
			}
		}
	}
	return out, nil
}

// dirSpec reports whether spec names a directory rather than an address,
// returning the directory relative to the build root.
func dirSpec(spec string) (dir string, recursive, ok bool) {
	raw := strings.TrimPrefix(spec, "//")
	if d, found := strings.CutSuffix(raw, "::"); found {
		return strings.Trim(d, "/"), true, true
	}
	if d, found := strings.CutSuffix(raw, ":"); found {
		return strings.Trim(d, "/"), false, true
	}
	return "", false, false
}

// logTraceback logs the engine traceback of err at debug level.
func (a *App) logTraceback(err error) {
	var nodeErr *engine.NodeError
	if errors.As(err, &nodeErr) {
		a.logger.Debug("Engine traceback.", "traceback", nodeErr.Traceback())
	}
}
