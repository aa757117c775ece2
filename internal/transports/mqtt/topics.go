package mqtt

import "strings"

// Topics строит имена топиков от общего префикса.
type Topics struct {
	Prefix string
}

// Command возвращает топик текстовых команд "name [value]".
func (t Topics) Command() string { return t.Prefix + "/command" }

// CommandWildcard возвращает подписку на топики вида <prefix>/command/<name>.
func (t Topics) CommandWildcard() string { return t.Prefix + "/command/+" }

// Result возвращает топик результатов команд.
func (t Topics) Result() string { return t.Prefix + "/result" }

// Status возвращает топик retained-снимка статуса колонки.
func (t Topics) Status() string { return t.Prefix + "/status" }

// Availability возвращает топик retained online/offline самого kefctl.
func (t Topics) Availability() string { return t.Prefix + "/availability" }

// commandName извлекает имя команды из <prefix>/command/<name>.
func (t Topics) commandName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, t.Command()+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
