// rvtest translates every .ll file matching a pattern and compares the
// assembly against the .s golden file next to it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/rvbe/pkg/codegen"
	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/irtext"
)

type status string

const (
	statusPass  status = "PASS"
	statusFail  status = "FAIL"
	statusSkip  status = "SKIP"
	statusError status = "ERROR"
)

var statusColor = map[status]string{
	statusPass:  "\x1b[92m",
	statusFail:  "\x1b[91m",
	statusSkip:  "\x1b[93m",
	statusError: "\x1b[91m",
}

const reset = "\x1b[0m"

type result struct {
	File     string        `json:"file"`
	Status   status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Digest   string        `json:"digest,omitempty"`
	Duration time.Duration `json:"duration"`
}

var (
	testFiles  = flag.String("test-files", "testdata/*.ll", "Glob pattern(s) for files to test (space-separated).")
	skipFiles  = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	flagArgs   = flag.String("flags", "", "Warning and feature flags applied to every translation (e.g. '-Fannotate -Wno-frame').")
	registers  = flag.String("regs", "", "Comma-separated register pool override.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
	update     = flag.Bool("update", false, "Rewrite golden files with the current output.")
	verbose    = flag.Bool("v", false, "Print digest and timing for every file.")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("rvtest: ")

	if _, err := newConfig(); err != nil {
		log.Fatal(err)
	}
	files, err := inputFiles(*testFiles)
	if err != nil {
		log.Fatal(err)
	}
	if len(files) == 0 {
		log.Println("no test files match", *testFiles)
		return
	}

	results := runAll(files)
	report(os.Stdout, results)
	if err := writeJSON(*outputJSON, results); err != nil {
		log.Print(err)
	}
	for _, r := range results {
		if r.Status == statusFail || r.Status == statusError { os.Exit(1) }
	}
}

// runAll tests files on *jobs workers. Files whose content hashes the same
// as an earlier one are skipped. Results come back sorted by file name.
func runAll(files []string) []*result {
	skip := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skip[f] = true
	}

	var (
		mu      sync.Mutex
		results []*result
		wg      sync.WaitGroup
	)
	add := func(r *result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	tasks := make(chan string)
	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				add(testFile(file))
			}
		}()
	}

	seen := make(map[uint64]string)
	for _, file := range files {
		if skip[file] || skip[filepath.Base(file)] {
			add(&result{File: file, Status: statusSkip, Message: "skipped on request"})
			continue
		}
		sum, err := hashFile(file)
		if err != nil {
			add(&result{File: file, Status: statusError, Message: err.Error()})
			continue
		}
		if first, dup := seen[sum]; dup {
			add(&result{File: file, Status: statusSkip, Message: "same content as " + filepath.Base(first)})
			continue
		}
		seen[sum] = file
		tasks <- file
	}
	close(tasks)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results
}

// newConfig builds a fresh configuration per translation; workers never
// share one.
func newConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if unknown := cfg.ProcessFlags(strings.Fields(*flagArgs)); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown flag(s): %s", strings.Join(unknown, " "))
	}
	if *registers != "" {
		if err := cfg.SetRegisters(strings.Split(*registers, ",")); err != nil { return nil, err }
	}
	return cfg, nil
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil { return 0, err }
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil { return 0, err }
	return h.Sum64(), nil
}

func goldenPath(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ".s"
}

func translateFile(file string) (string, uint64, error) {
	src, err := os.ReadFile(file)
	if err != nil { return "", 0, err }
	mod, err := irtext.Parse([]rune(string(src)), 0)
	if err != nil { return "", 0, err }
	cfg, err := newConfig()
	if err != nil { return "", 0, err }
	prog, _, err := codegen.Translate(mod, cfg)
	if err != nil { return "", 0, err }
	return prog.String(), prog.Digest(), nil
}

func testFile(file string) *result {
	start := time.Now()
	r := &result{File: file}
	finish := func(s status, format string, args ...any) *result {
		r.Status, r.Message, r.Duration = s, fmt.Sprintf(format, args...), time.Since(start)
		return r
	}

	got, digest, err := translateFile(file)
	if err != nil { return finish(statusError, "%v", err) }
	if _, again, err := translateFile(file); err != nil || again != digest {
		return finish(statusFail, "output differs between two translations")
	}
	r.Digest = fmt.Sprintf("%016x", digest)

	golden := goldenPath(file)
	if *update {
		if err := os.WriteFile(golden, []byte(got), 0o644); err != nil { return finish(statusError, "%v", err) }
		return finish(statusPass, "golden file updated")
	}
	want, err := os.ReadFile(golden)
	if err != nil { return finish(statusSkip, "no %s (run with -update)", filepath.Base(golden)) }
	if r.Diff = cmp.Diff(strings.Split(string(want), "\n"), strings.Split(got, "\n")); r.Diff != "" {
		return finish(statusFail, "assembly differs from %s (-want +got)", filepath.Base(golden))
	}
	return finish(statusPass, "assembly matches %s", filepath.Base(golden))
}

func report(w io.Writer, results []*result) {
	counts := make(map[status]int)
	var total time.Duration
	for _, r := range results {
		counts[r.Status]++
		total += r.Duration
		fmt.Fprintf(w, "[%s%-5s%s] %s: %s\n", statusColor[r.Status], r.Status, reset, filepath.Base(r.File), r.Message)
		if *verbose && r.Digest != "" {
			fmt.Fprintf(w, "        digest %s in %v\n", r.Digest, r.Duration.Round(time.Microsecond))
		}
		for _, line := range strings.Split(strings.TrimRight(r.Diff, "\n"), "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" { continue }
			color := ""
			switch trimmed[0] {
			case '-':
				color = statusColor[statusFail]
			case '+':
				color = statusColor[statusPass]
			}
			fmt.Fprintf(w, "        %s%s%s\n", color, line, reset)
		}
	}
	fmt.Fprintf(w, "%d passed, %d failed, %d skipped, %d errors in %v\n",
		counts[statusPass], counts[statusFail], counts[statusSkip], counts[statusError], total.Round(time.Millisecond))
}

func writeJSON(path string, results []*result) error {
	byFile := make(map[string]*result, len(results))
	for _, r := range results {
		byFile[r.File] = r
	}
	data, err := json.MarshalIndent(byFile, "", "  ")
	if err != nil { return err }
	return os.WriteFile(path, data, 0o644)
}

// inputFiles expands space-separated glob patterns into absolute paths of
// regular files, without duplicates.
func inputFiles(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil { return nil, fmt.Errorf("bad pattern %s: %w", pattern, err) }
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil || seen[abs] { continue }
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				seen[abs] = true
				files = append(files, abs)
			}
		}
	}
	return files, nil
}
