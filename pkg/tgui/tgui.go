package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline is a small builder for inline keyboards (ReplyMarkup).
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a new row of buttons to the inline keyboard.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Markup returns the underlying reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button with raw callback_data (not encoded).
// Use the Data helper to build "scope:action:payload" safely.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// Grid2 splits buttons into 2 columns and returns a ready ReplyMarkup.
func Grid2(buttons []tele.Btn) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rows := rm.Split(2, buttons)
	rm.Inline(rows...)
	return rm
}

// ConfirmInline builds a simple 2-button confirm keyboard.
func ConfirmInline(yes, no tele.Btn) *Inline {
	return NewInline().Row(yes, no)
}
