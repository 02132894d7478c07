package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mogaika/bvh_player/bvh"
)

var checkCmd = &cobra.Command{
	Use:   "check <dir>",
	Short: "Parse every .bvh file under a directory and report failures",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

type checkResult struct {
	Path   string
	Joints int
	Frames int
	Err    error
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	results, err := parseCheck(args[0], parseOptions(cfg))
	if err != nil {
		return err
	}

	failed := 0
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", r.Path, r.Err)
		} else {
			fmt.Fprintf(out, "ok   %s: %d joints, %d frames\n", r.Path, r.Joints, r.Frames)
		}
	}
	if failed != 0 {
		return errors.Errorf("%d of %d files failed to parse", failed, len(results))
	}
	return nil
}

// parseCheck parses all motion files below root concurrently. Parse failures
// are reported per file, only walk errors abort.
func parseCheck(root string, opts bvh.Options) ([]checkResult, error) {
	paths := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".bvh") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	logger := log.With().Str("component", "check").Logger()
	opts.Logger = &logger

	var mu sync.Mutex
	results := make([]checkResult, 0, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, path := range paths {
		path := path
		g.Go(func() error {
			r := checkResult{Path: path}
			skel, frames, err := bvh.ParseFile(path, opts)
			if err != nil {
				r.Err = err
			} else {
				r.Joints = skel.Len()
				r.Frames = frames.NumFrames()
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}
