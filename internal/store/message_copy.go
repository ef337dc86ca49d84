package store

import (
	"slices"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// cloneMessage deep-copies the parts of m that a caller could mutate in place.
func cloneMessage(m botapi.Message) botapi.Message {
	m.Entities = slices.Clone(m.Entities)
	m.CaptionEntities = slices.Clone(m.CaptionEntities)
	m.Photo = slices.Clone(m.Photo)
	m.NewChatMembers = slices.Clone(m.NewChatMembers)
	if m.Poll != nil {
		p := clonePoll(*m.Poll)
		m.Poll = &p
	}
	if m.ReplyMarkup != nil {
		m.ReplyMarkup = cloneMarkup(m.ReplyMarkup)
	}
	if m.ReplyToMessage != nil {
		r := cloneMessage(*m.ReplyToMessage)
		m.ReplyToMessage = &r
	}
	if m.PinnedMessage != nil {
		p := cloneMessage(*m.PinnedMessage)
		m.PinnedMessage = &p
	}
	return m
}

func clonePoll(p botapi.Poll) botapi.Poll {
	p.Options = slices.Clone(p.Options)
	p.ExplanationEntities = slices.Clone(p.ExplanationEntities)
	if p.CorrectOptionID != nil {
		id := *p.CorrectOptionID
		p.CorrectOptionID = &id
	}
	return p
}

func cloneMarkup(k *botapi.InlineKeyboardMarkup) *botapi.InlineKeyboardMarkup {
	rows := make([][]botapi.InlineKeyboardButton, len(k.InlineKeyboard))
	for i, row := range k.InlineKeyboard {
		rows[i] = slices.Clone(row)
	}
	return &botapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
