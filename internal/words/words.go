package words

import (
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var embeddedBank []byte

const (
	MinLength = 4
	MaxLength = 7
)

var ErrNoWords = errors.New("words: no solutions for requested length")

type bankFile struct {
	Lengths map[int][]string `yaml:"lengths"`
}

// Bank holds candidate round solutions grouped by word length.
type Bank struct {
	byLength map[int][]string
}

// Load reads a YAML bank from path, or the embedded default when path is empty.
func Load(path string) (*Bank, error) {
	raw := embeddedBank
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read word bank %s: %w", path, err)
		}
		raw = b
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse word bank: %w", err)
	}
	b := &Bank{byLength: map[int][]string{}}
	for n, list := range f.Lengths {
		seen := map[string]struct{}{}
		for _, w := range list {
			w = strings.ToLower(strings.TrimSpace(w))
			if len(w) != n || !IsAlpha(w) {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			b.byLength[n] = append(b.byLength[n], w)
		}
	}
	if len(b.byLength) == 0 {
		return nil, ErrNoWords
	}
	return b, nil
}

func MustDefault() *Bank {
	b, err := Load("")
	if err != nil {
		panic(err)
	}
	return b
}

// Pick returns n solutions of the given length. Words do not repeat until the
// list for that length is exhausted.
func (b *Bank) Pick(length, n int) ([]string, error) {
	list := b.byLength[length]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoWords, length)
	}
	out := make([]string, 0, n)
	var pool []string
	for len(out) < n {
		if len(pool) == 0 {
			pool = append(pool, list...)
		}
		i := randIndex(len(pool))
		out = append(out, pool[i])
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return out, nil
}

func (b *Bank) Lengths() []int {
	out := make([]int, 0, len(b.byLength))
	for n := range b.byLength {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (b *Bank) Count(length int) int {
	return len(b.byLength[length])
}

// IsAlpha reports whether s is all lowercase ASCII letters.
func IsAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return s != ""
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
