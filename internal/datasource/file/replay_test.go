package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pushdown/internal/jsonvalue"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestReadList_SkipsCommentsAndBlanks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "pages.txt", `
# captured 2026-10-01
page-1.json
   # indented comment

   page-2.json
`)
	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	if want := []string{"page-1.json", "page-2.json"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadList_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadList(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestFromManifest_ReplaysInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"data":[{"id":1}]}`)
	abs := writeFile(t, dir, "b.json", `[{"id":2}]`)
	manifest := writeFile(t, dir, "pages.txt", "a.json\n"+abs+"\n")

	r, err := FromManifest(manifest)
	if err != nil {
		t.Fatalf("FromManifest: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}

	ctx := context.Background()
	p1, err := r.FetchPage(ctx, 1, 100)
	if err != nil || p1.Exhausted {
		t.Fatalf("page 1: %+v, %v", p1, err)
	}
	if p1.Body.Kind() != jsonvalue.Object {
		t.Fatalf("page 1 kind = %v", p1.Body.Kind())
	}
	p2, err := r.FetchPage(ctx, 2, 100)
	if err != nil || !p2.Exhausted || p2.Body.Kind() != jsonvalue.Array {
		t.Fatalf("page 2: %+v, %v", p2, err)
	}
	p3, err := r.FetchPage(ctx, 3, 100)
	if err != nil || !p3.Body.IsNull() {
		t.Fatalf("page 3: %+v, %v", p3, err)
	}
}

func TestReplay_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{"data":`)
	missing := filepath.Join(dir, "missing.json")

	cases := []struct {
		name string
		r    *Replay
		page int
		ctx  func() context.Context
		want string
	}{
		{"page zero", NewReplay(bad), 0, context.Background, "page must be >= 1"},
		{"bad json", NewReplay(bad), 1, context.Background, "replay: parse"},
		{"missing", NewReplay(missing), 1, context.Background, "replay: open"},
		{"canceled", NewReplay(bad), 1, func() context.Context {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx
		}, "context canceled"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.r.FetchPage(tc.ctx(), tc.page, 10)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}
