package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/palatki-dv/warden/engine"
)

// defaultTexts are the fixed user-facing strings. Placeholders are documented
// on engine.Texts.
var defaultTexts = engine.Texts{
	Welcome: "Привет, %s! Добро пожаловать в группу. Ознакомьтесь с правилами (/rules) и подпишитесь на канал.",
	Rules: "Правила группы:\n" +
		"1. Без оскорблений и мата.\n" +
		"2. Без спама и рекламы.\n" +
		"3. Три нарушения — бан.",
	Help: "Команды:\n" +
		"/rules — правила группы\n" +
		"/help — эта справка",
	AutoReply: "Сейчас ночь, модераторы спят. Ответим утром! А пока загляните в канал.",
	Warn:      "⚠️ %s, предупреждение %d/%d. Следующее нарушение может привести к бану.",
	BanNotice: "🚫 %s удалён из группы за повторные нарушения.",
	OwnerNote: "🌙 Ночное сообщение от %s:\n%s",

	ActivationPrompt:    "Введите код доступа.",
	ActivationOK:        "✅ Код принят, доступ открыт.",
	ActivationWrong:     "❌ Неверный код. Осталось попыток: %d.",
	ActivationInvalid:   "Это не похоже на код. Попробуйте ещё раз.",
	ActivationExhausted: "Попытки исчерпаны. Обратитесь к администратору.",
	ActivationCancelled: "Ввод кода отменён.",
	ActivationIdle:      "Сейчас нечего отменять. Начните с /start.",
	ActivationActive:    "Доступ уже открыт.",

	StatsEmpty:      "Нарушений не зафиксировано.",
	SubscribeButton: "📢 Подписаться на канал",
	ReadButton:      "✅ Прочитал",
}

// defaultBlocklist seeds the matcher when no blocklist file is configured.
// Terms are matched through the confusable-skeleton fold, so each entry also
// covers its leetspeak and mixed-alphabet variants.
var defaultBlocklist = []string{
	"сука",
	"суки",
	"блять",
	"блядь",
	"бля",
	"хуй",
	"хуйня",
	"пизда",
	"пиздец",
	"ебать",
	"ебаный",
	"заебал",
	"идиот",
	"идиоты",
	"дебил",
	"даун",
	"мудак",
	"гандон",
	"шлюха",
	"fuck",
	"shit",
	"bitch",
	"scam",
}

// loadBlocklist reads one term per line; blank lines and #-comments are
// skipped.
func loadBlocklist(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blocklist: %w", err)
	}
	var terms []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("blocklist %s has no terms", path)
	}
	return terms, nil
}
