package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buger/jsonparser"
)

var (
	ErrEmptyManifest = errors.New("manifest has no entries")
	ErrInvalidEntry  = errors.New("first manifest entry is not an object")
)

// Update holds the values written into the first manifest entry.
type Update struct {
	DownloadCount          int
	LastUpdate             int64
	Changelog              string
	AssemblyVersion        string
	TestingAssemblyVersion string
	DownloadLinkInstall    string
	DownloadLinkUpdate     string
	DownloadLinkTesting    string
	DalamudAPILevel        string
	TestingDalamudAPILevel string
	IconURL                string
}

type field struct {
	key   string
	value any
}

func (u *Update) fields() []field {
	return []field{
		{"DownloadCount", u.DownloadCount},
		{"LastUpdate", u.LastUpdate},
		{"Changelog", u.Changelog},
		{"AssemblyVersion", u.AssemblyVersion},
		{"TestingAssemblyVersion", u.TestingAssemblyVersion},
		{"DownloadLinkInstall", u.DownloadLinkInstall},
		{"DownloadLinkUpdate", u.DownloadLinkUpdate},
		{"DownloadLinkTesting", u.DownloadLinkTesting},
		{"DalamudApiLevel", u.DalamudAPILevel},
		{"TestingDalamudApiLevel", u.TestingDalamudAPILevel},
		{"IconUrl", u.IconURL},
	}
}

// Keys lists the manifest keys written by Apply, in write order.
func Keys() []string {
	fields := (&Update{}).fields()
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Manifest is a pluginmaster document. Entries are kept as raw JSON so that
// keys and values this tool does not manage survive a rewrite unchanged.
type Manifest struct {
	path    string
	mode    os.FileMode
	entries []json.RawMessage
}

func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat manifest: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.path = path
	m.mode = info.Mode().Perm()
	return m, nil
}

func Parse(data []byte) (*Manifest, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyManifest
	}
	if _, dataType, _, err := jsonparser.Get(entries[0]); err != nil || dataType != jsonparser.Object {
		return nil, ErrInvalidEntry
	}
	return &Manifest{mode: 0o644, entries: entries}, nil
}

func (m *Manifest) Len() int {
	return len(m.entries)
}

func (m *Manifest) Path() string {
	return m.path
}

// Field returns the current value of a key of the first entry as text.
func (m *Manifest) Field(key string) (string, bool) {
	value, dataType, _, err := jsonparser.Get(m.entries[0], key)
	if err != nil || dataType == jsonparser.NotExist {
		return "", false
	}
	if dataType == jsonparser.String {
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return "", false
		}
		return s, true
	}
	return string(value), true
}

func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

type member struct {
	key   string
	value []byte
}

// objectMembers lists the members of an object in order. A repeated key keeps
// the position of its first occurrence and the value of its last one.
func objectMembers(entry []byte) ([]member, error) {
	members := make([]member, 0)
	index := make(map[string]int)
	err := jsonparser.ObjectEach(entry, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		raw := value
		if dataType == jsonparser.String {
			raw = make([]byte, 0, len(value)+2)
			raw = append(raw, '"')
			raw = append(raw, value...)
			raw = append(raw, '"')
		}
		if i, ok := index[string(key)]; ok {
			members[i].value = raw
			return nil
		}
		index[string(key)] = len(members)
		members = append(members, member{key: string(key), value: raw})
		return nil
	})
	return members, err
}

func encodeObject(members []member) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mb := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalValue(mb.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(mb.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Apply merges u into the first entry. Existing keys keep their position,
// missing keys are appended.
func (m *Manifest) Apply(u *Update) error {
	members, err := objectMembers(m.entries[0])
	if err != nil {
		return fmt.Errorf("failed to read first entry: %w", err)
	}
	for _, f := range u.fields() {
		value, err := marshalValue(f.value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", f.key, err)
		}
		found := false
		for i := range members {
			if members[i].key == f.key {
				members[i].value = value
				found = true
				break
			}
		}
		if !found {
			members = append(members, member{key: f.key, value: value})
		}
	}
	entry, err := encodeObject(members)
	if err != nil {
		return fmt.Errorf("failed to encode first entry: %w", err)
	}
	m.entries[0] = entry
	return nil
}

// Marshal renders the manifest as JSON indented by two spaces.
func (m *Manifest) Marshal() ([]byte, error) {
	// json.Marshal would HTML-escape the raw entries, so the array is assembled by hand.
	var raw bytes.Buffer
	raw.WriteByte('[')
	for i, entry := range m.entries {
		if i > 0 {
			raw.WriteByte(',')
		}
		raw.Write(entry)
	}
	raw.WriteByte(']')
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw.Bytes()); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Save replaces the manifest file through a temp file in the same directory,
// so readers never observe a partially written document.
func (m *Manifest) Save() error {
	if m.path == "" {
		return fmt.Errorf("manifest has no path")
	}
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(m.path), ".pluginmaster-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	cleanup := func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmpFile.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Chmod(m.mode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}
