package booking

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jogofacil/field-booking/internal/model"
)

const waBase = "https://wa.me/"

// digits strips every non-digit from a phone number.
func digits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// brDate turns YYYY-MM-DD into DD/MM/YYYY.
func brDate(iso string) string {
	p := strings.Split(iso, "-")
	if len(p) != 3 {
		return iso
	}
	return p[2] + "/" + p[1] + "/" + p[0]
}

// WhatsAppLink builds a wa.me link.  It returns "" when phone has no digits.
func WhatsAppLink(phone, text string) string {
	d := digits(phone)
	if d == "" {
		return ""
	}
	return waBase + d + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// RequestMessage is what the captain sends to the field owner after
// requesting slot.
func RequestMessage(slot model.MatchSlot, teamName string) string {
	text := fmt.Sprintf("Olá, sou do time %s. Solicitei o agendamento (%s) no App Jogo Fácil para o dia %s às %s.",
		teamName, slot.MatchType, brDate(slot.Date), slot.Time)
	if slot.MatchType == model.MatchRental && slot.OpponentTeamName != "" {
		text += fmt.Sprintf(" Jogo contra: %s.", slot.OpponentTeamName)
	}
	return text + " Aguardo a chave PIX."
}

// ContactMessage is what the owner sends to the booker of slot.
func ContactMessage(field model.Field, slot model.MatchSlot) string {
	return fmt.Sprintf("Olá %s, sou da %s. Estou entrando em contato sobre o jogo marcado para %s às %s.",
		slot.BookedByTeamName, field.Name, brDate(slot.Date), slot.Time)
}

// InquiryMessage is a generic question about a field.
func InquiryMessage(field model.Field) string {
	return fmt.Sprintf("Olá, vi seu campo %s no Jogo Fácil e tenho uma dúvida.", field.Name)
}
