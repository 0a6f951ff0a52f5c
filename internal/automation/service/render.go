package service

import (
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// renderContext carries the per-recipient values substituted into a rule's
// message template.
type renderContext struct {
	UserName    string
	AmountCents int64
	DueDate     *time.Time
	PaymentLink string
	ChurchName  string
	Locale      string
}

var defaultLocale = language.BrazilianPortuguese

func (rc renderContext) languageTag() language.Tag {
	if rc.Locale == "" {
		return defaultLocale
	}
	tag, err := language.Parse(rc.Locale)
	if err != nil {
		return defaultLocale
	}
	return tag
}

// renderTemplate substitutes the supported tokens into the template. Tokens
// the engine does not know are left verbatim so typos surface in the
// delivered text instead of disappearing silently.
func renderTemplate(template string, rc renderContext) string {
	tag := rc.languageTag()
	return strings.NewReplacer(
		"{nome_usuario}", rc.UserName,
		"{valor_transacao}", formatAmount(rc.AmountCents, tag),
		"{data_vencimento}", formatDueDate(rc.DueDate, tag),
		"{link_pagamento}", rc.PaymentLink,
		"{nome_igreja}", rc.ChurchName,
	).Replace(template)
}

// formatAmount renders cents as localized BRL. Tithes are a BRL-only domain;
// the locale only changes digit grouping and the decimal separator. The
// integer cents are split rather than divided as a float so amounts of any
// size render exactly.
func formatAmount(cents int64, tag language.Tag) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	reais, centavos := cents/100, cents%100

	sep := ","
	if base, _ := tag.Base(); base.String() == "en" {
		sep = "."
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("%v %s%v%s%02d", currency.Symbol(currency.BRL), sign, number.Decimal(reais), sep, centavos)
}

func formatDueDate(due *time.Time, tag language.Tag) string {
	if due == nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return due.Format("Jan 2, 2006")
	}
	return due.Format("02/01/2006")
}
