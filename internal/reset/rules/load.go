package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"
	pstrings "recycle/internal/platform/strings"
)

// FileName is the fixed rule file name looked up in every source directory
const FileName = "reset.json"

// Paths lists candidate rule files: configDir/reset.json first, then
// <module>/etc/reset.json for every module directory in the order given.
// A path listed twice is kept at its first position.
func Paths(configDir string, moduleDirs []string) []string {
	out := make([]string, 0, len(moduleDirs)+1)
	if configDir != "" {
		out = append(out, filepath.Join(configDir, FileName))
	}
	for _, d := range moduleDirs {
		out = append(out, filepath.Join(d, "etc", FileName))
	}
	return pstrings.Dedupe(out)
}

// readFile is swapped in tests to simulate unreadable files
var readFile = os.ReadFile

// Load reads and merges every existing path in order. Missing files are
// skipped; anything else that goes wrong fails the whole load and names the path.
func Load(paths []string) (Set, error) {
	log := logger.Named("rules")
	sets := make([]Set, 0, len(paths))
	for _, p := range paths {
		data, err := readFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", p).Msg("rule file absent; skipped")
			continue
		}
		if err != nil {
			return Set{}, perr.WithOp(perr.Wrapf(err, perr.ErrorCodeConfig, "rules: read %s", p), "rules.Load")
		}
		s, err := Parse(p, data)
		if err != nil {
			return Set{}, perr.WithOp(err, "rules.Load")
		}
		log.Debug().Str("path", p).Int("classes", s.Len()).Msg("rule file loaded")
		sets = append(sets, s)
	}
	merged := Merge(sets...)
	log.Info().Int("sources", len(sets)).Int("classes", merged.Len()).Msg("reset rules ready")
	return merged, nil
}

// Parse decodes one rule fragment. name identifies the source in errors and
// becomes the Origin of every class it declares. A repeated key inside one
// fragment replaces the earlier value but keeps its position.
func Parse(name string, data []byte) (Set, error) {
	fail := func(format string, a ...any) error {
		return perr.Configf("rules: parse %s: "+format, append([]any{name}, a...)...)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectObject(dec); err != nil {
		return Set{}, fail("%v", err)
	}

	var (
		order []string
		byKey = map[string]Fields{}
	)
	for dec.More() {
		key, err := objectKey(dec)
		if err != nil {
			return Set{}, fail("%v", err)
		}
		fields, err := parseFields(dec)
		if err != nil {
			return Set{}, fail("class %q: %v", key, err)
		}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = fields
	}
	if _, err := dec.Token(); err != nil {
		return Set{}, fail("%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Set{}, fail("unexpected trailing data")
	}

	var s Set
	for _, k := range order {
		s.add(class{name: k, fields: byKey[k], origin: name})
	}
	return s, nil
}

func parseFields(dec *json.Decoder) (Fields, error) {
	if err := expectObject(dec); err != nil {
		return nil, err
	}
	var fields Fields
	for dec.More() {
		key, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields = fields.set(key, raw)
	}
	_, err := dec.Token()
	return fields, err
}

func expectObject(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return errors.New("empty document")
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}
	return nil
}

func objectKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", errors.New("expected an object key")
	}
	return key, nil
}
