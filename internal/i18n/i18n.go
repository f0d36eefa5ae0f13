// Package i18n holds the user-facing message catalogs. English is complete;
// other catalogs overlay it, so a missing translation falls back to English.
package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

const defaultLocale = "en"

// catalogs 按 locale 索引的覆盖表
var catalogs = map[string]map[string]string{
	"zh-CN": ZhCNMessages,
}

// I18n 某个 locale 的只读消息表
// I18n is an immutable message table for one locale; safe for concurrent use.
type I18n struct {
	locale   string
	messages map[string]string
}

var global atomic.Pointer[I18n]

// Global returns the process-wide catalog, detecting the locale on first use.
func Global() *I18n {
	if g := global.Load(); g != nil {
		return g
	}
	global.CompareAndSwap(nil, New(""))
	return global.Load()
}

// Init replaces the process-wide catalog. An empty locale is detected from the environment.
func Init(locale string) {
	global.Store(New(locale))
}

// T translates key with the process-wide catalog.
func T(key string, args ...any) string {
	return Global().T(key, args...)
}

// New builds the table for locale.
func New(locale string) *I18n {
	if strings.TrimSpace(locale) == "" {
		locale = DetectLocale()
	}
	locale = normalizeLocale(locale)

	messages := make(map[string]string, len(EnMessages))
	for k, v := range EnMessages {
		messages[k] = v
	}
	for k, v := range catalogs[locale] {
		messages[k] = v
	}
	return &I18n{locale: locale, messages: messages}
}

// T formats the message for key; unknown keys come back unchanged.
func (i *I18n) T(key string, args ...any) string {
	tmpl, ok := i.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (i *I18n) Locale() string {
	return i.locale
}

// DetectLocale 依次读取 PHOTOAGENT_LANG、LC_ALL、LC_MESSAGES、LANG
// DetectLocale reads the first non-empty locale variable, POSIX precedence
// after PHOTOAGENT_LANG.
func DetectLocale() string {
	for _, env := range []string{"PHOTOAGENT_LANG", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" && v != "C" && v != "POSIX" {
			return normalizeLocale(v)
		}
	}
	return defaultLocale
}

// normalizeLocale maps "zh_CN.UTF-8" to "zh-CN" and any English variant to
// "en". Unknown languages keep their region, dash-separated.
func normalizeLocale(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), ".")
	s, _, _ = strings.Cut(s, "@")
	if s == "" {
		return defaultLocale
	}
	s = strings.ReplaceAll(s, "_", "-")
	switch lang, _, _ := strings.Cut(strings.ToLower(s), "-"); lang {
	case "zh":
		return "zh-CN"
	case "en":
		return defaultLocale
	}
	return s
}
