package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"smcbot/internal/smc"
)

// Settings 顶层运行配置（TOML）。
type Settings struct {
	Symbol       string `toml:"symbol" json:"symbol"`
	Interval     string `toml:"interval" json:"interval"`
	HistoryLimit int    `toml:"history_limit" json:"history_limit"`

	Strategy smc.Config `toml:"strategy" json:"strategy"`

	HTTPAddr   string `toml:"http_addr" json:"http_addr"`
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path"`
	ReportDir  string `toml:"report_dir" json:"report_dir"`
}

func (s Settings) withDefaults() Settings {
	out := s
	if out.Symbol == "" {
		out.Symbol = "BTCUSDT"
	}
	if out.Interval == "" {
		out.Interval = "1m"
	}
	if out.HistoryLimit <= 0 {
		out.HistoryLimit = 500
	}
	if out.HTTPAddr == "" {
		out.HTTPAddr = ":9980"
	}
	if out.ReportDir == "" {
		out.ReportDir = "reports"
	}
	if out.Strategy.SwingLength < 1 {
		out.Strategy.SwingLength = 50
	}
	if out.Strategy.InternalLength < 1 {
		out.Strategy.InternalLength = 5
	}
	if out.Strategy.EqualTolerance <= 0 {
		out.Strategy.EqualTolerance = 0.1
	}
	return out
}

// Validate 拦截明显不可用的组合。
func (s Settings) Validate() error {
	if s.HistoryLimit <= s.Strategy.SwingLength {
		return fmt.Errorf("history_limit %d 必须大于 swing_length %d", s.HistoryLimit, s.Strategy.SwingLength)
	}
	return nil
}

// Loader 负责加载/保存配置文件，保存采用临时文件+rename 的原子写。
type Loader struct {
	path string
	mu   sync.Mutex
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load 读取配置；文件不存在时返回默认配置而非报错。
func (l *Loader) Load() (Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}.withDefaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("读取配置失败: %w", err)
	}
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("解析配置失败: %w", err)
	}
	final := s.withDefaults()
	if err := final.Validate(); err != nil {
		return Settings{}, err
	}
	return final, nil
}

// Save 原子化写回配置文件。
func (l *Loader) Save(s Settings) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, l.path)
}
