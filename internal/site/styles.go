package site

import (
	"fmt"
	"sort"
	"strings"
)

// Color palette (WCAG 2.1 AA, 4.5:1 minimum contrast on bg)
var Colors = map[string]string{
	"bg":        "#FFFFFF",
	"bgAlt":     "#F1F5F9", // Cards, form surface
	"text":      "#0F172A", // 17:1 on bg
	"textMuted": "#475569", // 7.5:1 on bg

	"primary":     "#0F766E", // Teal, 5.4:1 on bg
	"primaryDark": "#115E59",
	"onPrimary":   "#FFFFFF",

	"danger":  "#B91C1C", // Error text, 6.5:1 on bg
	"success": "#15803D",

	"border":      "#CBD5E1",
	"borderFocus": "#0F766E",
}

// Typography uses system font stack for instant loading
var FontFamily = `system-ui, -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif`

// StyleOption allows customizing the generated CSS
type StyleOption func(*styleConfig)

type styleConfig struct {
	customColors map[string]string
	includeReset bool
}

// WithCustomColors overrides default colors
func WithCustomColors(colors map[string]string) StyleOption {
	return func(cfg *styleConfig) {
		for k, v := range colors {
			cfg.customColors[k] = v
		}
	}
}

// WithReset includes a CSS reset
func WithReset(include bool) StyleOption {
	return func(cfg *styleConfig) {
		cfg.includeReset = include
	}
}

// RenderStyles generates the CSS of the site pages and the apply form.
func RenderStyles(opts ...StyleOption) string {
	cfg := &styleConfig{
		customColors: make(map[string]string),
		includeReset: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	colors := make(map[string]string, len(Colors))
	for k, v := range Colors {
		colors[k] = v
	}
	for k, v := range cfg.customColors {
		colors[k] = v
	}

	var sb strings.Builder
	if cfg.includeReset {
		sb.WriteString(cssReset())
	}
	sb.WriteString(cssVariables(colors))
	sb.WriteString(cssBase())
	sb.WriteString(cssRoleChips())
	sb.WriteString(cssApplyForm())
	sb.WriteString(cssAccessibility())
	return sb.String()
}

func cssReset() string {
	return `
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
html{-webkit-text-size-adjust:100%}
body{line-height:1.6;-webkit-font-smoothing:antialiased}
input,button,textarea,select{font:inherit}
[hidden]{display:none !important}
`
}

func cssVariables(colors map[string]string) string {
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]string, 0, len(names))
	for _, name := range names {
		vars = append(vars, fmt.Sprintf("--color-%s:%s", name, colors[name]))
	}
	return fmt.Sprintf(`:root{%s;--font-sans:%s}`, strings.Join(vars, ";"), FontFamily)
}

func cssBase() string {
	return `
body{font-family:var(--font-sans);background:var(--color-bg);color:var(--color-text)}
main{max-width:40rem;margin:0 auto;padding:2rem 1rem}
h1{font-size:2rem;line-height:1.2;margin-bottom:1rem}
h2{font-size:1.25rem;margin-bottom:.5rem}
p{margin-bottom:1rem;color:var(--color-textMuted)}
a{color:var(--color-primary)}
`
}

func cssRoleChips() string {
	return `
[data-role-chips]{display:flex;flex-wrap:wrap;gap:.5rem;margin-bottom:.5rem}
[data-role-chips] button{border:1px solid var(--color-border);background:var(--color-bg);color:var(--color-text);border-radius:999px;padding:.25rem 1rem;cursor:pointer}
[data-role-chips] button.is-selected{background:var(--color-primary);border-color:var(--color-primary);color:var(--color-onPrimary)}
`
}

func cssApplyForm() string {
	return `
.apply-card{background:var(--color-bgAlt);border:1px solid var(--color-border);border-radius:.75rem;padding:1.5rem}
.apply-progress{height:.375rem;background:var(--color-border);border-radius:999px;overflow:hidden;margin-bottom:.5rem}
.apply-progress::after{content:"";display:block;height:100%;width:var(--progress,0%);background:var(--color-primary);transition:width .2s ease}
.apply-status{font-size:.875rem;margin-bottom:1rem}
.apply-step{border:0;display:grid;gap:.75rem}
.apply-step legend{font-weight:600;margin-bottom:.5rem}
.apply-step label{display:grid;gap:.25rem;font-weight:500}
.apply-step input,.apply-step select,.apply-step textarea{border:1px solid var(--color-border);border-radius:.5rem;padding:.5rem .75rem;background:var(--color-bg)}
.apply-step input[type=checkbox],.apply-step input[type=radio]{width:auto;justify-self:start}
.apply-step [aria-invalid=true]{border-color:var(--color-danger)}
.apply-error{color:var(--color-danger);font-size:.875rem;min-height:1.25rem;margin:0}
.apply-actions{display:flex;gap:.5rem;justify-content:flex-end;margin-top:1.5rem}
.apply-actions button{border:0;border-radius:.5rem;padding:.5rem 1.25rem;cursor:pointer;background:var(--color-primary);color:var(--color-onPrimary)}
.apply-actions button[data-stepper-prev]{background:transparent;color:var(--color-primary);border:1px solid var(--color-primary)}
.apply-actions button:disabled{opacity:.5;cursor:not-allowed}
form:not(.is-stepper) .apply-progress,form:not(.is-stepper) .apply-status{display:none}
`
}

func cssAccessibility() string {
	return `
:focus-visible{outline:2px solid var(--color-borderFocus);outline-offset:2px}
.sr-only{position:absolute;width:1px;height:1px;padding:0;margin:-1px;overflow:hidden;clip:rect(0,0,0,0);white-space:nowrap;border:0}
@media (prefers-reduced-motion:reduce){*{transition:none !important}}
`
}
