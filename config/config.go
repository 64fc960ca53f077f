// Package config loads tool configuration from TOML: the transport to open,
// upload settings, logging, and the bring-up profile table.
//
// Example file:
//
//	[transport]
//	kind = "usb"
//	vendor_id = "0x1209"
//
//	[upload]
//	block_size = 4096
//	file_name = "keystone3.bin"
//
//	[log]
//	level = "debug"
//
//	[[profile]]
//	firmware_version = "1.2.4"
//	model = "Kv3A"
//	receive_buffer = "0x20085988"
//	image_offset = "0x0A"
//	file_name = "keystone3.bin"
//	file_size = 100000
//	md5 = "997335c1ac2aab2332e8838e57c6715e"
//	[profile.symbols]
//	print = "0x010959a4"
//	set_update_key = "0x01099860"
package config

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/moffa90/go-fwlink/protocol"
	"github.com/moffa90/go-fwlink/updater"
)

// Transport kinds.
const (
	TransportUSB    = "usb"
	TransportSerial = "serial"
)

// Config is the loaded configuration.
type Config struct {
	Transport TransportConfig
	Upload    UploadConfig
	Log       LogConfig
	Profiles  updater.ProfileTable
}

// TransportConfig selects the device channel.
type TransportConfig struct {
	Kind        string
	VendorID    uint16
	ProductID   uint16
	InEndpoint  int
	OutEndpoint int
	Port        string
	BaudRate    int
	Timeout     time.Duration
	UnitSize    int
}

// UploadConfig holds file transfer settings.
type UploadConfig struct {
	BlockSize int
	FileName  string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level     string
	NoColor   bool
	Timestamp bool
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Transport: TransportConfig{
			Kind:     TransportUSB,
			VendorID: 0x1209,
			BaudRate: 115200,
			Timeout:  5 * time.Second,
			UnitSize: protocol.UnitSize,
		},
		Upload: UploadConfig{
			BlockSize: protocol.DefaultBlockSize,
			FileName:  "keystone3.bin",
		},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
		Profiles: updater.ProfileTable{},
	}
}

type fileConfig struct {
	Transport struct {
		Kind        string `toml:"kind"`
		VendorID    string `toml:"vendor_id"`
		ProductID   string `toml:"product_id"`
		InEndpoint  int    `toml:"in_endpoint"`
		OutEndpoint int    `toml:"out_endpoint"`
		Port        string `toml:"port"`
		BaudRate    int    `toml:"baud"`
		Timeout     string `toml:"timeout"`
		UnitSize    int    `toml:"unit_size"`
	} `toml:"transport"`

	Upload struct {
		BlockSize int    `toml:"block_size"`
		FileName  string `toml:"file_name"`
	} `toml:"upload"`

	Log struct {
		Level     string `toml:"level"`
		NoColor   bool   `toml:"no_color"`
		Timestamp bool   `toml:"timestamp"`
	} `toml:"log"`

	Profiles []fileProfile `toml:"profile"`
}

type fileProfile struct {
	FirmwareVersion string            `toml:"firmware_version"`
	Model           string            `toml:"model"`
	ReceiveBuffer   string            `toml:"receive_buffer"`
	ImageOffset     string            `toml:"image_offset"`
	Symbols         map[string]string `toml:"symbols"`
	FileName        string            `toml:"file_name"`
	FileSize        int64             `toml:"file_size"`
	MD5             string            `toml:"md5"`
	Signature       string            `toml:"signature"`
}

// Load reads a TOML file. Keys absent from the file keep their Default values.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return build(raw, meta)
}

// Parse decodes TOML text. Keys absent from the text keep their Default values.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return build(raw, meta)
}

func build(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	cfg := Default()
	if err := applyTransport(&cfg.Transport, raw, meta); err != nil {
		return Config{}, err
	}

	if meta.IsDefined("upload", "block_size") {
		if raw.Upload.BlockSize <= 0 || raw.Upload.BlockSize > updater.MaxBlockSize {
			return Config{}, fmt.Errorf("upload.block_size %d outside 1..%d", raw.Upload.BlockSize, updater.MaxBlockSize)
		}
		cfg.Upload.BlockSize = raw.Upload.BlockSize
	}
	if meta.IsDefined("upload", "file_name") {
		cfg.Upload.FileName = strings.TrimSpace(raw.Upload.FileName)
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}

	profiles := make([]updater.Profile, 0, len(raw.Profiles))
	for i, fp := range raw.Profiles {
		p, err := fp.profile()
		if err != nil {
			return Config{}, fmt.Errorf("profile[%d]: %w", i, err)
		}
		profiles = append(profiles, p)
	}
	table, err := updater.NewProfileTable(profiles...)
	if err != nil {
		return Config{}, err
	}
	cfg.Profiles = table

	return cfg, nil
}

func applyTransport(t *TransportConfig, raw fileConfig, meta toml.MetaData) error {
	rt := raw.Transport
	if meta.IsDefined("transport", "kind") {
		kind := strings.ToLower(strings.TrimSpace(rt.Kind))
		if kind != TransportUSB && kind != TransportSerial {
			return fmt.Errorf("transport.kind %q: expected %q or %q", rt.Kind, TransportUSB, TransportSerial)
		}
		t.Kind = kind
	}
	if meta.IsDefined("transport", "vendor_id") {
		id, err := parseUint(rt.VendorID, 16)
		if err != nil {
			return fmt.Errorf("transport.vendor_id: %w", err)
		}
		t.VendorID = uint16(id)
	}
	if meta.IsDefined("transport", "product_id") {
		id, err := parseUint(rt.ProductID, 16)
		if err != nil {
			return fmt.Errorf("transport.product_id: %w", err)
		}
		t.ProductID = uint16(id)
	}
	if meta.IsDefined("transport", "in_endpoint") {
		t.InEndpoint = rt.InEndpoint
	}
	if meta.IsDefined("transport", "out_endpoint") {
		t.OutEndpoint = rt.OutEndpoint
	}
	if meta.IsDefined("transport", "port") {
		t.Port = strings.TrimSpace(rt.Port)
	}
	if meta.IsDefined("transport", "baud") {
		t.BaudRate = rt.BaudRate
	}
	if meta.IsDefined("transport", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(rt.Timeout))
		if err != nil {
			return fmt.Errorf("parse transport.timeout: %w", err)
		}
		t.Timeout = d
	}
	if meta.IsDefined("transport", "unit_size") {
		if rt.UnitSize <= 0 {
			return fmt.Errorf("transport.unit_size must be positive, got %d", rt.UnitSize)
		}
		t.UnitSize = rt.UnitSize
	}
	if t.Kind == TransportSerial && t.Port == "" {
		return fmt.Errorf("transport.port is required for serial transport")
	}
	return nil
}

func (fp fileProfile) profile() (updater.Profile, error) {
	p := updater.Profile{
		FirmwareVersion: strings.TrimSpace(fp.FirmwareVersion),
		Model:           strings.TrimSpace(fp.Model),
		Symbols:         make(map[string]uint32, len(fp.Symbols)),
	}

	var err error
	if p.ReceiveBuffer, err = parseAddress(fp.ReceiveBuffer); err != nil {
		return p, fmt.Errorf("receive_buffer: %w", err)
	}
	if fp.ImageOffset != "" {
		if p.ImageOffset, err = parseAddress(fp.ImageOffset); err != nil {
			return p, fmt.Errorf("image_offset: %w", err)
		}
	}
	for name, raw := range fp.Symbols {
		addr, err := parseAddress(raw)
		if err != nil {
			return p, fmt.Errorf("symbol %s: %w", name, err)
		}
		p.Symbols[name] = addr
	}

	if fp.FileSize < 0 || fp.FileSize > 0xFFFFFFFF {
		return p, fmt.Errorf("file_size %d out of range", fp.FileSize)
	}
	p.Metadata = updater.FileInfo{
		Name: strings.TrimSpace(fp.FileName),
		Size: uint32(fp.FileSize),
	}
	if p.Metadata.Digest, err = decodeFixedHex(fp.MD5, 16); err != nil {
		return p, fmt.Errorf("md5: %w", err)
	}
	if p.Metadata.Signature, err = decodeFixedHex(fp.Signature, 64); err != nil {
		return p, fmt.Errorf("signature: %w", err)
	}
	return p, nil
}

func parseUint(raw string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 0, bits)
}

func parseAddress(raw string) (uint32, error) {
	v, err := parseUint(raw, 32)
	return uint32(v), err
}

// decodeFixedHex decodes an optional hex value of exactly size bytes.
func decodeFixedHex(raw string, size int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(b))
	}
	return b, nil
}
