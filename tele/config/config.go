// Separate package is workaround to import cycles.
package tele_config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"
	"github.com/juju/errors"
	"github.com/temoto/limelight/helpers"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
	telenet "github.com/temoto/limelight/tele/net"
)

const (
	DefaultURL      = "tcp://127.0.0.1:9999"
	DefaultInterval = 10 * time.Millisecond
	DefaultCount    = 1000
	DefaultTopic    = "limelight"
	DefaultClientID = "limelight"
	DefaultMqttWait = 5 * time.Second
)

type Config struct { //nolint:maligned
	// includeSeen contains normalized paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include" toml:"include"`

	Listen            string        `hcl:"listen" toml:"listen"`
	Connect           string        `hcl:"connect" toml:"connect"`
	NetworkTimeoutSec int           `hcl:"network_timeout_sec" toml:"network_timeout_sec"`
	KeepaliveSec      int           `hcl:"keepalive_sec" toml:"keepalive_sec"`
	LogDebug          bool          `hcl:"log_debug" toml:"log_debug"`
	Boards            []BoardConfig `hcl:"board" toml:"board"`
	Mqtt              MqttConfig    `hcl:"mqtt" toml:"mqtt"`
}

// HCL: board "1" { interval_ms = 10 count = 1000 }
// TOML: [[board]] id = 1
type BoardConfig struct {
	Key        string `hcl:"id,key" toml:"-"`
	Id         int    `hcl:"-" toml:"id"`
	IntervalMs int    `hcl:"interval_ms" toml:"interval_ms"`
	Count      int    `hcl:"count" toml:"count"`
}

type MqttConfig struct { //nolint:maligned
	Enabled     bool   `hcl:"enable" toml:"enable"`
	Broker      string `hcl:"broker" toml:"broker"`
	ClientID    string `hcl:"client_id" toml:"client_id"`
	TopicPrefix string `hcl:"topic_prefix" toml:"topic_prefix"`
	Qos         int    `hcl:"qos" toml:"qos"`
	Heartbeat   bool   `hcl:"heartbeat" toml:"heartbeat"`
	TimeoutSec  int    `hcl:"timeout_sec" toml:"timeout_sec"`
	LogDebug    bool   `hcl:"log_debug" toml:"log_debug"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key" toml:"name"`
	Optional bool   `hcl:"optional" toml:"optional"`
}

func (c *Config) NetworkTimeout() time.Duration {
	return helpers.IntSecondDefault(c.NetworkTimeoutSec, telenet.DefaultNetworkTimeout)
}

// Zero disables keepalive.
func (c *Config) Keepalive() time.Duration {
	return helpers.IntSecondDefault(c.KeepaliveSec, 0)
}

func (b *BoardConfig) Board() limelight.BoardID { return limelight.BoardID(b.Id) }
func (b *BoardConfig) Interval() time.Duration {
	return helpers.IntMillisecondDefault(b.IntervalMs, DefaultInterval)
}

func (m *MqttConfig) Timeout() time.Duration {
	return helpers.IntSecondDefault(m.TimeoutSec, DefaultMqttWait)
}

// DefaultBoards matches typical test bench: three bay boards.
func DefaultBoards() []BoardConfig {
	return []BoardConfig{
		{Id: int(limelight.BoardBay1), IntervalMs: int(DefaultInterval / time.Millisecond), Count: DefaultCount},
		{Id: int(limelight.BoardBay2), IntervalMs: int(DefaultInterval / time.Millisecond), Count: DefaultCount},
		{Id: int(limelight.BoardBay3), IntervalMs: int(DefaultInterval / time.Millisecond), Count: DefaultCount},
	}
}

// Fill empty values with defaults.
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultURL
	}
	if c.Connect == "" {
		c.Connect = DefaultURL
	}
	if len(c.Boards) == 0 {
		c.Boards = DefaultBoards()
	}
	for i := range c.Boards {
		b := &c.Boards[i]
		if b.IntervalMs == 0 {
			b.IntervalMs = int(DefaultInterval / time.Millisecond)
		}
		if b.Count == 0 {
			b.Count = DefaultCount
		}
	}
	if c.Mqtt.ClientID == "" {
		c.Mqtt.ClientID = DefaultClientID
	}
	if c.Mqtt.TopicPrefix == "" {
		c.Mqtt.TopicPrefix = DefaultTopic
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0)
	if err := telenet.ValidateURL(c.Listen); err != nil {
		errs = append(errs, errors.NotValidf("listen=%s (%v)", c.Listen, err))
	}
	if err := telenet.ValidateURL(c.Connect); err != nil {
		errs = append(errs, errors.NotValidf("connect=%s (%v)", c.Connect, err))
	}
	if c.NetworkTimeoutSec < 0 {
		errs = append(errs, errors.NotValidf("network_timeout_sec=%d", c.NetworkTimeoutSec))
	}
	if c.KeepaliveSec < 0 {
		errs = append(errs, errors.NotValidf("keepalive_sec=%d", c.KeepaliveSec))
	}
	seen := make(map[int]struct{}, len(c.Boards))
	for _, b := range c.Boards {
		if b.Id < 0 || b.Id > int(limelight.BoardMax) {
			errs = append(errs, errors.NotValidf("board id=%d", b.Id))
			continue
		}
		if _, ok := seen[b.Id]; ok {
			errs = append(errs, errors.NotValidf("board id=%d duplicate", b.Id))
		}
		seen[b.Id] = struct{}{}
		if b.IntervalMs < 0 {
			errs = append(errs, errors.NotValidf("board id=%d interval_ms=%d", b.Id, b.IntervalMs))
		}
		if b.Count < 0 {
			errs = append(errs, errors.NotValidf("board id=%d count=%d", b.Id, b.Count))
		}
	}
	if c.Mqtt.Enabled {
		if c.Mqtt.Broker == "" {
			errs = append(errs, errors.NotValidf("mqtt enabled without broker"))
		}
		if c.Mqtt.Qos < 0 || c.Mqtt.Qos > 2 {
			errs = append(errs, errors.NotValidf("mqtt qos=%d", c.Mqtt.Qos))
		}
		if strings.ContainsAny(c.Mqtt.TopicPrefix, "+#") {
			errs = append(errs, errors.NotValidf("mqtt topic_prefix=%s wildcard", c.Mqtt.TopicPrefix))
		}
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) String() string {
	return fmt.Sprintf("listen=%s connect=%s boards=%d mqtt=%t", c.Listen, c.Connect, len(c.Boards), c.Mqtt.Enabled)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if strings.EqualFold(filepath.Ext(norm), ".toml") {
		_, err = toml.Decode(string(bs), c)
	} else {
		err = c.unmarshalHcl(bs)
	}
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func (c *Config) unmarshalHcl(bs []byte) error {
	file, err := hcl.ParseBytes(bs)
	if err != nil {
		return err
	}
	// hcl splits unkeyed block into one slice element per attribute
	if root, ok := file.Node.(*ast.ObjectList); ok {
		if items := root.Filter("board").Elem().Items; len(items) != 0 {
			return errors.NotValidf("%s board block without id, expected board \"N\" {...}", items[0].Pos())
		}
	}
	if err = hcl.DecodeObject(c, file); err != nil {
		return err
	}
	for i := range c.Boards {
		b := &c.Boards[i]
		if b.Key == "" {
			continue
		}
		id, err := strconv.Atoi(b.Key)
		if err != nil {
			return errors.NotValidf("board id=%s", b.Key)
		}
		b.Id, b.Key = id, ""
	}
	return nil
}

// ReadConfig reads sources in order, later values override earlier.
// Empty names gives defaults.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if osfs, ok := fs.(*OsFullReader); ok && len(names) != 0 {
		dir, name := filepath.Split(names[0])
		if dir != "" {
			osfs.SetBase(dir)
			names = append([]string{name}, names[1:]...)
		}
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return c, err
	}
	c.applyDefaults()
	return c, c.Validate()
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
