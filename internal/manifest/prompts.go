package manifest

import (
	"appkeeper/internal/messages"
)

type wellKnown struct {
	qtype, name string
}

// questionsWithDefaultPrompt get a stock prompt when asked by install.
var questionsWithDefaultPrompt = map[wellKnown]bool{
	{TypeDomain, "domain"}:     true,
	{TypePath, "path"}:         true,
	{TypePassword, "password"}: true,
	{TypeUser, "admin"}:        true,
	{TypeBoolean, "is_public"}: true,
}

// ApplyDefaultPrompts fills stock prompts for well-known install questions
// and drops examples and defaults from questions that must always be
// answered explicitly. Other scripts' questions are left alone.
func ApplyDefaultPrompts(arguments map[string][]Question) {
	questions, ok := arguments[ScriptInstall]
	if !ok {
		return
	}
	for i := range questions {
		q := &questions[i]
		if questionsWithDefaultPrompt[wellKnown{q.Type, q.Name}] {
			key := "app_manifest_" + ScriptInstall + "_ask_" + q.Name
			q.Ask = LocalizedText{}
			for _, locale := range messages.Locales() {
				q.Ask[locale] = messages.In(locale, key, nil)
			}
		}
		switch q.Type {
		case TypeDomain, TypeUser, TypePassword:
			q.Example = ""
			q.Default = nil
		}
	}
}
