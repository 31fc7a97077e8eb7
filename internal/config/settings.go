package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgerrors "wxadmin/pkg/errors"
)

// SettingKind tells editors how to present a setting.
type SettingKind int

const (
	SettingText SettingKind = iota
	SettingDuration
	SettingChoice
)

// SettingDef describes one user-editable setting kept in the local store.
type SettingDef struct {
	Key     string
	Label   string
	Kind    SettingKind
	Default string
	Choices []string
}

// LogLevels are the accepted log_level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// SettingDefs lists the settings the local store manages, in display order.
var SettingDefs = []SettingDef{
	{Key: KeyAPIBase, Label: "API 地址", Kind: SettingText, Default: DefaultAPIBase},
	{Key: KeyPollInterval, Label: "轮询间隔", Kind: SettingDuration, Default: DefaultPollInterval.String()},
	{Key: KeyLoginRecheckDelay, Label: "登录复查延迟", Kind: SettingDuration, Default: DefaultLoginRecheckDelay.String()},
	{Key: KeyRequestTimeout, Label: "请求超时", Kind: SettingDuration, Default: DefaultRequestTimeout.String()},
	{Key: KeyLogLevel, Label: "日志级别", Kind: SettingChoice, Default: DefaultLogLevel, Choices: LogLevels},
}

// LookupSetting returns the definition for key.
func LookupSetting(key string) (SettingDef, bool) {
	for _, d := range SettingDefs {
		if d.Key == key {
			return d, true
		}
	}
	return SettingDef{}, false
}

// NormalizeSetting validates value for key and returns its canonical form.
func NormalizeSetting(key, value string) (string, error) {
	def, ok := LookupSetting(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", pkgerrors.ErrSettingNotFound, key)
	}
	value = strings.TrimSpace(value)

	invalid := func(format string, args ...any) error {
		return &pkgerrors.InputError{Field: key, Err: fmt.Errorf("%w: "+format, append([]any{pkgerrors.ErrInvalidSetting}, args...)...)}
	}

	switch def.Kind {
	case SettingDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return "", invalid("%q is not a duration", value)
		}
		if d <= 0 {
			return "", invalid("%s must be positive", value)
		}
		if key == KeyPollInterval && d < time.Second {
			return "", invalid("%s is shorter than 1s", value)
		}
		return d.String(), nil

	case SettingChoice:
		value = strings.ToLower(value)
		for _, c := range def.Choices {
			if c == value {
				return value, nil
			}
		}
		return "", invalid("%q is not one of %s", value, strings.Join(def.Choices, ", "))

	default:
		if key == KeyAPIBase {
			u, err := url.Parse(value)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return "", invalid("%q is not an http(s) URL", value)
			}
			return strings.TrimRight(value, "/"), nil
		}
		return value, nil
	}
}
