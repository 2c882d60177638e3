package i18n

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// message is one leaf of a locale file.
type message struct {
	One, Other string
}

// readLocale flattens a locale file into id -> message.
func readLocale(t *testing.T, name string) map[string]message {
	t.Helper()
	data, err := localeFS.ReadFile(path.Join("locales", name))
	require.NoError(t, err)

	var tree map[string]any
	_, err = toml.Decode(string(data), &tree)
	require.NoError(t, err, "%s is not valid TOML", name)

	out := map[string]message{}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		if other, ok := node["other"].(string); ok {
			one, _ := node["one"].(string)
			out[prefix] = message{One: one, Other: other}
			return
		}
		for k, v := range node {
			child, ok := v.(map[string]any)
			require.True(t, ok, "%s: %s.%s is neither a table nor a message", name, prefix, k)
			walk(strings.TrimPrefix(prefix+"."+k, "."), child)
		}
	}
	walk("", tree)
	return out
}

func localeNames(t *testing.T) []string {
	t.Helper()
	files, err := fs.Glob(localeFS, "locales/*.toml")
	require.NoError(t, err)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = path.Base(f)
	}
	return names
}

var verbPattern = regexp.MustCompile(`%[-+#0]*[0-9]*(?:\.[0-9]+)?[a-zA-Z%]`)

func TestLocalesMatchEnglish(t *testing.T) {
	en := readLocale(t, "en.toml")
	require.NotEmpty(t, en)

	for _, name := range localeNames(t) {
		if name == "en.toml" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			other := readLocale(t, name)
			for id, msg := range other {
				ref, ok := en[id]
				if !assert.True(t, ok, "%s has no English message", id) {
					continue
				}
				assert.Equal(t, verbPattern.FindAllString(ref.Other, -1), verbPattern.FindAllString(msg.Other, -1),
					"%s: format verbs differ", id)
				assert.Equal(t, ref.One != "", msg.One != "", "%s: plural forms differ", id)
			}
			for id := range en {
				if _, ok := other[id]; !ok {
					t.Logf("%s: untranslated %s", name, id)
				}
			}
		})
	}
}

// TestSourceMessagesExist parses every non-test Go file and checks that each
// literal id passed to T, Tf or Tn has an English entry.
func TestSourceMessagesExist(t *testing.T) {
	en := readLocale(t, "en.toml")
	root, err := moduleRoot()
	require.NoError(t, err)

	used := map[string]string{}
	fset := token.NewFileSet()
	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(p, ".go") || strings.HasSuffix(p, "_test.go") {
				return err
			}
			file, err := parser.ParseFile(fset, p, nil, 0)
			if err != nil {
				return err
			}
			ast.Inspect(file, func(n ast.Node) bool {
				if id, ok := messageID(n); ok {
					used[id] = fset.Position(n.Pos()).String()
				}
				return true
			})
			return nil
		})
		require.NoError(t, err)
	}
	require.NotEmpty(t, used, "no i18n calls found")

	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		assert.Contains(t, en, id, "used at %s", used[id])
	}
}

// messageID extracts the id from T("a.b", ...), Tf and Tn calls, qualified
// or not. Ids built at runtime are skipped.
func messageID(n ast.Node) (string, bool) {
	call, ok := n.(*ast.CallExpr)
	if !ok || len(call.Args) == 0 {
		return "", false
	}
	var name string
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		name = fn.Name
	case *ast.SelectorExpr:
		pkg, ok := fn.X.(*ast.Ident)
		if !ok || pkg.Name != "i18n" {
			return "", false
		}
		name = fn.Sel.Name
	default:
		return "", false
	}
	if name != "T" && name != "Tf" && name != "Tn" {
		return "", false
	}
	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	id, err := strconv.Unquote(lit.Value)
	if err != nil || !strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}

func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
