package patcher

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ErrBadDefinition is returned for malformed definition lines.
var ErrBadDefinition = errors.New("patcher: bad definition")

// Reference declares that values in Column of a table are row indices
// into Target, a lowercased table filename or "tlk". Column 0 is the
// row label column.
type Reference struct {
	Column int
	Target string
}

// References maps a lowercased table filename to its reference columns.
type References map[string][]Reference

// ConstantDef names the column holding constant symbols for a table and
// the script the constants are meant for.
type ConstantDef struct {
	Script string
	Column int
}

// Constants maps a lowercased table filename to its constant definition.
type Constants map[string]ConstantDef

// MinimumSizes maps a lowercased table filename to the row count the
// game requires.
type MinimumSizes map[string]int

//go:embed data/defaultreferences.txt
var defaultReferencesText string

//go:embed data/min2dasizes.txt
var minSizesText string

var (
	builtinReferences = mustParse(ParseReferences, "defaultreferences.txt", defaultReferencesText)
	builtinMinSizes   = mustParse(ParseMinimumSizes, "min2dasizes.txt", minSizesText)
)

func mustParse[T any](parse func(string, io.Reader) (T, error), name, text string) T {
	v, err := parse(name, strings.NewReader(text))
	if err != nil {
		panic(err)
	}
	return v
}

// DefaultReferences returns a copy of the built-in reference definitions.
func DefaultReferences() References {
	out := make(References, len(builtinReferences))
	for k, v := range builtinReferences {
		out[k] = slices.Clone(v)
	}
	return out
}

// DefaultMinimumSizes returns a copy of the built-in minimum row counts.
func DefaultMinimumSizes() MinimumSizes {
	return maps.Clone(builtinMinSizes)
}

var defLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Punct", Pattern: `[:;,]`},
	{Name: "Name", Pattern: `[^\s:;,]+`},
})

// includeLexer treats everything after ";" as a comment.
var includeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\r\n]*`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Punct", Pattern: `[:,]`},
	{Name: "Name", Pattern: `[^\s:;,]+`},
})

type referenceLine struct {
	File string           `@Name ":"`
	Refs []*referenceItem `(@@ ";"?)+`
}

type referenceItem struct {
	Column int    `@Name ","`
	Target string `@Name`
}

type includeLine struct {
	File   string `@Name ":"`
	Script string `@Name ","`
	Column int    `@Name`
}

type minSizeLine struct {
	File string `@Name`
	Rows int    `@Name`
}

var (
	referenceParser = participle.MustBuild[referenceLine](
		participle.Lexer(defLexer),
		participle.Elide("Whitespace"),
	)
	includeParser = participle.MustBuild[includeLine](
		participle.Lexer(includeLexer),
		participle.Elide("Whitespace", "Comment"),
	)
	minSizeParser = participle.MustBuild[minSizeLine](
		participle.Lexer(defLexer),
		participle.Elide("Whitespace"),
	)
)

// eachLine calls fn for every line of r that is neither blank nor a
// "#" or "//" comment.
func eachLine(name string, r io.Reader, fn func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if err := fn(n, line); err != nil {
			return fmt.Errorf("%w: %s:%d: %v", ErrBadDefinition, name, n, err)
		}
	}
	return sc.Err()
}

// ParseReferences reads reference definitions of the form
//
//	file.2da : col,target ; col,target ;
//
// The first line for a file wins.
func ParseReferences(name string, r io.Reader) (References, error) {
	refs := References{}
	err := eachLine(name, r, func(_ int, line string) error {
		parsed, err := referenceParser.ParseString(name, line)
		if err != nil {
			return err
		}
		key := strings.ToLower(parsed.File)
		if _, seen := refs[key]; seen {
			return nil
		}
		list := make([]Reference, 0, len(parsed.Refs))
		for _, item := range parsed.Refs {
			if item.Column < 0 {
				return fmt.Errorf("negative column %d", item.Column)
			}
			list = append(list, Reference{Column: item.Column, Target: strings.ToLower(item.Target)})
		}
		refs[key] = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ParseConstants reads constant definitions of the form
//
//	file.2da : script.nss , column ; comment
//
// The first line for a file wins.
func ParseConstants(name string, r io.Reader) (Constants, error) {
	defs := Constants{}
	err := eachLine(name, r, func(_ int, line string) error {
		parsed, err := includeParser.ParseString(name, line)
		if err != nil {
			return err
		}
		if parsed.Column < 0 {
			return fmt.Errorf("negative column %d", parsed.Column)
		}
		key := strings.ToLower(parsed.File)
		if _, seen := defs[key]; !seen {
			defs[key] = ConstantDef{Script: strings.ToLower(parsed.Script), Column: parsed.Column}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// ParseMinimumSizes reads "file.2da rows" lines.
func ParseMinimumSizes(name string, r io.Reader) (MinimumSizes, error) {
	sizes := MinimumSizes{}
	err := eachLine(name, r, func(_ int, line string) error {
		parsed, err := minSizeParser.ParseString(name, line)
		if err != nil {
			return err
		}
		if parsed.Rows < 0 {
			return fmt.Errorf("negative row count %d", parsed.Rows)
		}
		key := strings.ToLower(parsed.File)
		if _, seen := sizes[key]; !seen {
			sizes[key] = parsed.Rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sizes, nil
}

// readDefinitions parses the file at path, returning an empty result when
// it does not exist.
func readDefinitions[T any](path string, parse func(string, io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return parse(path, strings.NewReader(""))
	}
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return parse(path, f)
}
