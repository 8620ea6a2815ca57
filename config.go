package jscore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes. In YAML it may be written as a plain
// integer or with a KB, KiB, MB, MiB, GB or GiB suffix.
type ByteSize int64

var byteSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30},
	{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000},
	{"B", 1},
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", value.Line)
	}
	s := strings.TrimSpace(value.Value)
	mult := int64(1)
	for _, sfx := range byteSuffixes {
		if strings.HasSuffix(s, sfx.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sfx.suffix))
			mult = sfx.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid size %q", value.Line, value.Value)
	}
	*b = ByteSize(n * mult)
	return nil
}

// Config is the file form of the runtime options.
type Config struct {
	MemoryLimit   ByteSize  `yaml:"memoryLimit"`
	GCThreshold   *ByteSize `yaml:"gcThreshold"`
	MaxStackDepth int       `yaml:"maxStackDepth"`
	Locale        string    `yaml:"locale"`
	ExtendedJSON  bool      `yaml:"extendedJSON"`
	Log           LogConfig `yaml:"log"`
}

// LogConfig selects the verbosity and destination of the commonlog
// backend. A zero Verbosity leaves logging as it is.
type LogConfig struct {
	Verbosity int    `yaml:"verbosity"`
	Path      string `yaml:"path"`
}

// LoadConfig decodes a YAML document. Unknown keys are rejected and an
// empty document yields the zero Config.
func LoadConfig(r io.Reader) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("jscore: decoding config: %w", err)
	}
	return c, nil
}

// LoadConfigFile reads the configuration at path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadConfig(f)
}

// Options converts the configuration to runtime options. Unset fields keep
// their defaults.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.MemoryLimit < 0 {
		return nil, fmt.Errorf("jscore: negative memoryLimit %d", c.MemoryLimit)
	}
	if c.MemoryLimit > 0 {
		opts = append(opts, WithMemoryLimit(int64(c.MemoryLimit)))
	}
	if c.GCThreshold != nil {
		opts = append(opts, WithGCThreshold(int64(*c.GCThreshold)))
	}
	if c.MaxStackDepth < 0 {
		return nil, fmt.Errorf("jscore: negative maxStackDepth %d", c.MaxStackDepth)
	}
	if c.MaxStackDepth > 0 {
		opts = append(opts, WithMaxStackDepth(c.MaxStackDepth))
	}
	if c.Locale != "" {
		tag, err := language.Parse(c.Locale)
		if err != nil {
			return nil, fmt.Errorf("jscore: locale %q: %w", c.Locale, err)
		}
		opts = append(opts, WithLocale(tag))
	}
	if c.ExtendedJSON {
		opts = append(opts, WithExtendedJSON(true))
	}
	return opts, nil
}

// ConfigureLogging applies the log section to the commonlog backend.
func (c *Config) ConfigureLogging() {
	if c.Log.Verbosity == 0 {
		return
	}
	var path *string
	if c.Log.Path != "" {
		path = &c.Log.Path
	}
	commonlog.Configure(c.Log.Verbosity, path)
}

// NewFromConfig creates a runtime from a configuration file, with extra
// options applied after the file's.
func NewFromConfig(path string, extra ...Option) (*Runtime, error) {
	c, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	c.ConfigureLogging()
	return New(append(opts, extra...)...)
}
