// Package policy holds the relay's routing rules: the handoff keyword, the
// human-staffed window, the idle threshold, greeting phrases, forbidden reply
// phrases and scripted texts, plus the pure decision function over them.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/soyeahso/nerdson/internal/config"
)

// NoGreetPreamble prefixes the persona prompt in every system turn.
const NoGreetPreamble = "🚫 Atenção: não inclua nenhuma saudação ou 'bom dia/boa noite' automática.\n\n"

// Defaults for the policy table.
const (
	DefaultHandoffKeyword = "humano"
	DefaultHumanStart     = "09:00"
	DefaultHumanEnd       = "19:00"
	DefaultIdle           = 8 * time.Hour
	DefaultGreetingPause  = 4500 * time.Millisecond
	DefaultReplyPause     = 2 * time.Second

	DefaultHandoffAck     = "Beleza! Já avisei meus humanos, em instantes alguém da equipe DogNerd te responde por aqui. 🙋"
	DefaultGreetingFirst  = "Oiee! 🐶 Aqui é o Dog Nerdson falando! Bão? Tô de plantão de 19:00 às 9:00 am e pego finais de semana tb! Quase um doutô! 👨‍⚕️ 😇"
	DefaultGreetingSecond = "Me mande a sua dúvida que eu manjo de todos os paranauês da DogNerd. Sei ajudar nas medidas, no prazo ou no que precisar!\n\nSe der ruim, meus humanos te chamam no horário comercial! 😁"
	DefaultAudioAck       = "Recebi seu áudio e já respondo! 🎧"
	DefaultAudioFallback  = "Tive dificuldade pra ouvir seu áudio. Pode repetir, por favor?"
)

// DefaultDays are the weekdays with human staff.
var DefaultDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// DefaultGreetings is the exact-match greeting set, already normalized or not.
var DefaultGreetings = []string{
	"oi", "oie", "oiee", "olá", "ola", "tudo bem", "tudo bem?", "bom dia", "boa tarde", "boa noite",
}

// DefaultForbiddenPhrases are stock greetings the model tends to open with.
var DefaultForbiddenPhrases = []string{
	"Oi! Como posso te ajudar hoje?",
	"Oi, como posso te ajudar hoje?",
	"Olá, como posso te ajudar hoje?",
	"Olá! Como posso te ajudar hoje?",
	"Como posso te ajudar hoje?",
	"Oi! em que posso ajudar?",
	"Oi, em que posso ajudar?",
}

// Messages are the scripted texts the relay sends on its own.
type Messages struct {
	HandoffAck     string
	GreetingFirst  string
	GreetingSecond string
	AudioAck       string
	AudioFallback  string
}

// Policy is the resolved, immutable policy table.
type Policy struct {
	Keyword       string
	Location      *time.Location
	Days          map[time.Weekday]bool
	StartMinute   int // minutes after midnight, inclusive
	EndMinute     int // exclusive
	Idle          time.Duration
	GreetingPause time.Duration
	ReplyPause    time.Duration
	Messages      Messages

	greetings map[string]bool
	forbidden *regexp.Regexp
}

// Default returns the built-in policy in America/Sao_Paulo.
func Default() *Policy {
	p, err := FromConfig(config.PolicyConfig{})
	if err != nil {
		panic(err) // built-in values always parse
	}
	return p
}

// FromConfig resolves a policy from configuration, falling back to the
// defaults for every empty field.
func FromConfig(cfg config.PolicyConfig) (*Policy, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = config.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("policy timezone: %w", err)
	}

	p := &Policy{
		Keyword:       strings.ToLower(orDefault(cfg.HandoffKeyword, DefaultHandoffKeyword)),
		Location:      loc,
		Days:          make(map[time.Weekday]bool),
		Idle:          minutesOr(cfg.IdleMinutes, DefaultIdle),
		GreetingPause: millisOr(cfg.GreetingPauseMs, DefaultGreetingPause),
		ReplyPause:    millisOr(cfg.ReplyPauseMs, DefaultReplyPause),
		Messages: Messages{
			HandoffAck:     orDefault(cfg.Messages.HandoffAck, DefaultHandoffAck),
			GreetingFirst:  orDefault(cfg.Messages.GreetingFirst, DefaultGreetingFirst),
			GreetingSecond: orDefault(cfg.Messages.GreetingSecond, DefaultGreetingSecond),
			AudioAck:       orDefault(cfg.Messages.AudioAck, DefaultAudioAck),
			AudioFallback:  orDefault(cfg.Messages.AudioFallback, DefaultAudioFallback),
		},
	}

	if len(cfg.HumanHours.Days) == 0 {
		for _, d := range DefaultDays {
			p.Days[d] = true
		}
	} else {
		for _, name := range cfg.HumanHours.Days {
			d, ok := config.Weekdays[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("policy: unknown weekday %q", name)
			}
			p.Days[d] = true
		}
	}

	if p.StartMinute, err = config.ParseClock(orDefault(cfg.HumanHours.Start, DefaultHumanStart)); err != nil {
		return nil, err
	}
	if p.EndMinute, err = config.ParseClock(orDefault(cfg.HumanHours.End, DefaultHumanEnd)); err != nil {
		return nil, err
	}

	greetings := cfg.Greetings
	if len(greetings) == 0 {
		greetings = DefaultGreetings
	}
	p.greetings = make(map[string]bool, len(greetings))
	for _, g := range greetings {
		p.greetings[Normalize(g)] = true
	}

	phrases := cfg.ForbiddenPhrases
	if len(phrases) == 0 {
		phrases = DefaultForbiddenPhrases
	}
	p.forbidden = compilePhrases(phrases)

	return p, nil
}

// Normalize lowercases and trims text and strips trailing '?' and '!'.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimSpace(strings.TrimRight(s, "?!"))
}

// IsGreeting reports exact membership of the normalized text in the
// greeting set. "oi, preciso de ajuda" is not a greeting.
func (p *Policy) IsGreeting(text string) bool {
	n := Normalize(text)
	return n != "" && p.greetings[n]
}

// WantsHuman reports whether text contains the handoff keyword,
// case-insensitively.
func (p *Policy) WantsHuman(text string) bool {
	return strings.Contains(strings.ToLower(text), p.Keyword)
}

// InHumanHours reports whether now, in the policy location, falls on a
// staffed weekday within [start, end).
func (p *Policy) InHumanHours(now time.Time) bool {
	local := now.In(p.Location)
	if !p.Days[local.Weekday()] {
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= p.StartMinute && m < p.EndMinute
}

// IdleExpired reports whether the conversation should restart: there is no
// previous activity, or the gap strictly exceeds the idle threshold.
func (p *Policy) IdleExpired(prev time.Time, hasPrev bool, now time.Time) bool {
	if !hasPrev {
		return true
	}
	return now.Sub(prev) > p.Idle
}

// Sanitize removes every exact occurrence of a forbidden phrase and trims
// the result. Longer phrases are matched before their substrings.
func (p *Policy) Sanitize(reply string) string {
	if p.forbidden == nil {
		return strings.TrimSpace(reply)
	}
	return strings.TrimSpace(p.forbidden.ReplaceAllString(reply, ""))
}

// SystemPrompt builds the system turn content for a persona prompt.
func SystemPrompt(persona string) string {
	return NoGreetPreamble + persona
}

func compilePhrases(phrases []string) *regexp.Regexp {
	sorted := make([]string, 0, len(phrases))
	for _, ph := range phrases {
		if ph != "" {
			sorted = append(sorted, ph)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, ph := range sorted {
		quoted[i] = regexp.QuoteMeta(ph)
	}
	return regexp.MustCompile(strings.Join(quoted, "|"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func minutesOr(m int, def time.Duration) time.Duration {
	if m <= 0 {
		return def
	}
	return time.Duration(m) * time.Minute
}

func millisOr(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
