// Package keys loads the static list of cache keys to refresh.
package keys

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/cacherefresh/codec"
)

// MaxFileSize caps key files; they are read whole.
const MaxFileSize = 64 << 20

// maxFileSize is MaxFileSize, lowered in tests.
var maxFileSize int64 = MaxFileSize

var ErrNoKeys = errors.New("keys: file lists no keys")

// Load reads keys from path. The format follows the extension:
//
//	.json           JSON array of strings
//	.msgpack, .mpk  msgpack array of strings
//	.cbor           CBOR array of strings
//	anything else   one key per line; blank lines and lines starting with # are skipped
func Load(path string) ([]string, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	out, err := Parse(b, ext)
	if err != nil {
		return nil, fmt.Errorf("keys: %s: %w", path, err)
	}
	return out, nil
}

// readFile reads path but never more than maxFileSize+1 bytes.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil && fi.Size() > maxFileSize {
		return nil, fmt.Errorf("%s: file too large: %d > %d bytes", path, fi.Size(), maxFileSize)
	}
	b, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxFileSize {
		return nil, fmt.Errorf("%s: file too large: more than %d bytes", path, maxFileSize)
	}
	return b, nil
}

// Distinct drops repeated keys, keeping the first occurrence.
func Distinct(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Parse decodes b as format ("json", "msgpack", "mpk", "cbor"; anything else is line based).
func Parse(b []byte, format string) ([]string, error) {
	var (
		out []string
		err error
	)
	c, cerr := codec.ForFormat[[]string](format)
	if cerr == nil {
		out, err = codec.Limit[[]string]{Inner: c, MaxDecode: int(maxFileSize)}.Decode(b)
	} else {
		out, err = parseLines(b)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoKeys
	}
	for i, k := range out {
		if k == "" {
			return nil, fmt.Errorf("empty key at index %d", i)
		}
	}
	return out, nil
}

func parseLines(b []byte) ([]string, error) {
	if int64(len(b)) > maxFileSize {
		return nil, fmt.Errorf("file too large: %d > %d bytes", len(b), maxFileSize)
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
