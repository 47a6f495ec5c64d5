package codegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/irtext"
)

func TestGoldenFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "testdata", "*.ll"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Skip("no golden inputs")
	}
	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			src, err := os.ReadFile(file)
			if err != nil {
				t.Fatal(err)
			}
			want, err := os.ReadFile(strings.TrimSuffix(file, ".ll") + ".s")
			if err != nil {
				t.Fatal(err)
			}
			mod, err := irtext.Parse([]rune(string(src)), 0)
			if err != nil {
				t.Fatal(err)
			}
			prog, _, err := Translate(mod, config.NewConfig())
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(string(want), prog.String()); diff != "" {
				t.Errorf("assembly mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
