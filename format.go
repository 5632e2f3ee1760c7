package formula

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter turns a computed column value into display text
type Formatter interface {
	Format(v Value) (string, error)
}

// FormatterFunc adapts a plain function to the Formatter interface
type FormatterFunc func(v Value) (string, error)

func (f FormatterFunc) Format(v Value) (string, error) {
	return f(v)
}

// ParseFormat builds a formatter from a format string:
//
//	number[:decimals[:locale]]
//	percent[:decimals[:locale]]
//	currency:CODE[:locale]
//	date[:short|medium|long|full[:locale]]
//	text
func ParseFormat(pattern string) (Formatter, error) {
	parts := strings.Split(strings.TrimSpace(pattern), ":")
	kind := strings.ToLower(parts[0])
	arg := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}

	switch kind {
	case "number", "percent":
		decimals := -1
		if d := arg(1); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 {
				return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid decimals in format %q", pattern))
			}
			decimals = n
		}
		tag, err := parseLocale(arg(2))
		if err != nil {
			return nil, err
		}
		if kind == "percent" {
			return percentFormatter(tag, decimals), nil
		}
		return numberFormatter(tag, decimals), nil

	case "currency":
		code := arg(1)
		if code == "" {
			return nil, NewApplicationError(InvalidArgument, "currency format requires a currency code")
		}
		unit, err := currency.ParseISO(code)
		if err != nil {
			return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("unknown currency %q", code))
		}
		tag, err := parseLocale(arg(2))
		if err != nil {
			return nil, err
		}
		return currencyFormatter(tag, unit), nil

	case "date":
		style := strings.ToLower(arg(1))
		if style == "" {
			style = "medium"
		}
		switch style {
		case "short", "medium", "long", "full", "iso":
		default:
			return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("unknown date style %q", style))
		}
		return dateFormatter(style, mondayLocale(arg(2))), nil

	case "text", "":
		return FormatterFunc(func(v Value) (string, error) {
			return toText(v), nil
		}), nil
	}

	return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("unknown format %q", pattern))
}

func parseLocale(locale string) (language.Tag, error) {
	if locale == "" {
		return language.AmericanEnglish, nil
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.Und, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid locale %q", locale))
	}
	return tag, nil
}

func numericArg(v Value) (float64, error) {
	num, ok := toNumber(v)
	if !ok {
		return 0, NewFormulaError(ErrorCodeValue, fmt.Sprintf("cannot format %s as a number", v.Kind()))
	}
	return num, nil
}

func fractionOptions(decimals int) []number.Option {
	if decimals < 0 {
		return nil
	}
	return []number.Option{
		number.MinFractionDigits(decimals),
		number.MaxFractionDigits(decimals),
	}
}

func numberFormatter(tag language.Tag, decimals int) Formatter {
	p := message.NewPrinter(tag)
	opts := fractionOptions(decimals)
	return FormatterFunc(func(v Value) (string, error) {
		num, err := numericArg(v)
		if err != nil {
			return "", err
		}
		return p.Sprintf("%v", number.Decimal(num, opts...)), nil
	})
}

func percentFormatter(tag language.Tag, decimals int) Formatter {
	p := message.NewPrinter(tag)
	opts := fractionOptions(decimals)
	return FormatterFunc(func(v Value) (string, error) {
		num, err := numericArg(v)
		if err != nil {
			return "", err
		}
		return p.Sprintf("%v", number.Percent(num, opts...)), nil
	})
}

func currencyFormatter(tag language.Tag, unit currency.Unit) Formatter {
	p := message.NewPrinter(tag)
	return FormatterFunc(func(v Value) (string, error) {
		num, err := numericArg(v)
		if err != nil {
			return "", err
		}
		return p.Sprintf("%v", currency.Symbol(unit.Amount(num))), nil
	})
}

func dateFormatter(style string, locale monday.Locale) Formatter {
	layout := dateLayout(style, locale)
	return FormatterFunc(func(v Value) (string, error) {
		var t time.Time
		switch v.Kind() {
		case KindDateTime:
			t = v.t
		case KindNumber:
			t = time.UnixMilli(int64(v.num)).UTC()
		default:
			return "", NewFormulaError(ErrorCodeValue, fmt.Sprintf("cannot format %s as a date", v.Kind()))
		}
		if style == "iso" {
			return t.Format(layout), nil
		}
		return monday.Format(t, layout, locale), nil
	})
}

// mondayLocale maps a locale string such as "de" or "en_GB" to a monday
// locale, falling back to US English
func mondayLocale(locale string) monday.Locale {
	if locale == "" {
		return monday.LocaleEnUS
	}
	locale = strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
	localeMap := map[string]monday.Locale{
		"en":    monday.LocaleEnUS,
		"en_us": monday.LocaleEnUS,
		"en_gb": monday.LocaleEnGB,
		"de":    monday.LocaleDeDE,
		"de_de": monday.LocaleDeDE,
		"fr":    monday.LocaleFrFR,
		"fr_fr": monday.LocaleFrFR,
		"fr_ca": monday.LocaleFrCA,
		"es":    monday.LocaleEsES,
		"es_es": monday.LocaleEsES,
		"it":    monday.LocaleItIT,
		"it_it": monday.LocaleItIT,
		"pt":    monday.LocalePtPT,
		"pt_pt": monday.LocalePtPT,
		"pt_br": monday.LocalePtBR,
		"nl":    monday.LocaleNlNL,
		"nl_nl": monday.LocaleNlNL,
		"ja":    monday.LocaleJaJP,
		"ja_jp": monday.LocaleJaJP,
		"zh":    monday.LocaleZhCN,
		"zh_cn": monday.LocaleZhCN,
	}
	if loc, ok := localeMap[locale]; ok {
		return loc
	}
	if lang, _, found := strings.Cut(locale, "_"); found {
		if loc, ok := localeMap[lang]; ok {
			return loc
		}
	}
	return monday.LocaleEnUS
}

func dateLayout(style string, locale monday.Locale) string {
	switch style {
	case "iso":
		return "2006-01-02"
	case "short":
		switch locale {
		case monday.LocaleEnUS:
			return "1/2/06"
		case monday.LocaleDeDE:
			return "02.01.06"
		case monday.LocaleJaJP, monday.LocaleZhCN:
			return "06/01/02"
		}
		return "02/01/06"
	case "long":
		switch locale {
		case monday.LocaleEnUS:
			return "January 2, 2006"
		case monday.LocaleDeDE:
			return "2. January 2006"
		case monday.LocaleJaJP, monday.LocaleZhCN:
			return "2006年1月2日"
		}
		return "2 January 2006"
	case "full":
		switch locale {
		case monday.LocaleEnUS:
			return "Monday, January 2, 2006"
		case monday.LocaleDeDE:
			return "Monday, 2. January 2006"
		}
		return "Monday, 2 January 2006"
	}
	switch locale {
	case monday.LocaleEnUS:
		return "Jan 2, 2006"
	case monday.LocaleDeDE:
		return "2. Jan. 2006"
	case monday.LocaleJaJP, monday.LocaleZhCN:
		return "2006年1月2日"
	}
	return "2 Jan 2006"
}
