package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() failed: %v", err)
	}

	if !strings.Contains(dir, appName) {
		t.Errorf("GetConfigDir() = %s, should contain %s", dir, appName)
	}

	switch runtime.GOOS {
	case "linux", "darwin":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(dir, ".config") {
			t.Errorf("GetConfigDir() on %s = %s, should contain .config", runtime.GOOS, dir)
		}
	}
}

func TestGetConfigDirXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() failed: %v", err)
	}
	if want := filepath.Join("/tmp/xdg-test", appName); dir != want {
		t.Errorf("GetConfigDir() = %s, want %s", dir, want)
	}
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() failed: %v", err)
	}
	if filepath.Base(path) != configFile {
		t.Errorf("GetConfigPath() = %s, should end with %s", path, configFile)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != DefaultPort || cfg.Mode != DefaultMode {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "yaml", file: "config.yaml"},
		{name: "toml", file: "config.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tt.file)

			cfg := Default()
			cfg.Mode = "udp"
			cfg.Host = "0.0.0.0"
			cfg.Port = 9000
			cfg.Framing.StartsWith = "<<"
			cfg.Framing.EndsWith = ">>"
			cfg.Framing.Codec = "json"
			cfg.Framing.MaxBuffer = 4096
			cfg.Datagram.PeerIdleTimeout = "90s"
			cfg.Advertise = true
			cfg.Instance = "bench"

			if err := cfg.SaveFile(path); err != nil {
				t.Fatalf("SaveFile() failed: %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("Stat() failed: %v", err)
			}
			if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
				t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temporary file left behind")
			}

			data, _ := os.ReadFile(path)
			if !strings.HasPrefix(string(data), "# sockpacket configuration file") {
				t.Error("saved file is missing its header comment")
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() failed: %v", err)
			}
			if *loaded != *cfg {
				t.Errorf("LoadFile() = %+v, want %+v", loaded, cfg)
			}
		})
	}
}

func TestLoadFilePartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nport: 8080\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Framing.StartsWith != Default().Framing.StartsWith {
		t.Errorf("StartsWith = %q, want default", cfg.Framing.StartsWith)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "bad yaml", file: "c.yaml", content: "port: [", wantErr: "failed to parse"},
		{name: "bad toml", file: "c.toml", content: "port = ", wantErr: "failed to parse"},
		{name: "wrong version", file: "c.yaml", content: "version: 2\n", wantErr: "unsupported config version"},
		{name: "bad mode", file: "c.yaml", content: "version: 1\nmode: pigeon\n", wantErr: "invalid transport mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("LoadFile() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() on a missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "udp", mutate: func(c *Config) { c.Mode = "udp" }},
		{name: "quic", mutate: func(c *Config) { c.Mode = "quic" }},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "smoke-signals" }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "negative port", mutate: func(c *Config) { c.Port = -1 }, wantErr: true},
		{name: "unknown charset", mutate: func(c *Config) { c.Framing.Encoding = "klingon" }, wantErr: true},
		{name: "unknown codec", mutate: func(c *Config) { c.Framing.Codec = "protobuf" }, wantErr: true},
		{name: "negative max buffer", mutate: func(c *Config) { c.Framing.MaxBuffer = -5 }, wantErr: true},
		{name: "bad idle timeout", mutate: func(c *Config) { c.Datagram.PeerIdleTimeout = "soon" }, wantErr: true},
		{name: "negative idle timeout", mutate: func(c *Config) { c.Datagram.PeerIdleTimeout = "-1s" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "chatty" }, wantErr: true},
		{name: "identical sentinels warn only", mutate: func(c *Config) {
			c.Framing.StartsWith = "##"
			c.Framing.EndsWith = "##"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransportOptions(t *testing.T) {
	cfg := Default()
	cfg.Mode = "udp"
	cfg.Framing.Codec = "json"
	cfg.Framing.MaxBuffer = 128
	cfg.Datagram.PeerIdleTimeout = "2m"

	opts, err := cfg.TransportOptions()
	if err != nil {
		t.Fatalf("TransportOptions() failed: %v", err)
	}
	if opts.Mode != "udp" {
		t.Errorf("Mode = %q, want udp", opts.Mode)
	}
	if opts.PeerIdleTimeout != 2*time.Minute {
		t.Errorf("PeerIdleTimeout = %v, want 2m", opts.PeerIdleTimeout)
	}
	if opts.MaxBuffer != 128 {
		t.Errorf("MaxBuffer = %d, want 128", opts.MaxBuffer)
	}
	if opts.Delimiter.Charset() != "utf8" {
		t.Errorf("Charset = %q, want utf8", opts.Delimiter.Charset())
	}
	v, err := opts.Parser.Parse(`{"a":1}`)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if m, ok := v.(map[string]any); !ok || m["a"] != float64(1) {
		t.Errorf("Parse() = %#v, want JSON object", v)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		mode string
		host string
		port int
		want string
	}{
		{mode: "tcp", host: "127.0.0.1", port: 7171, want: "127.0.0.1:7171"},
		{mode: "udp", host: "::1", port: 53, want: "[::1]:53"},
		{mode: "unix", host: "/tmp/sp.sock", port: 0, want: "/tmp/sp.sock"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c := &Config{Mode: tt.mode, Host: tt.host, Port: tt.port}
			if got := c.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}
