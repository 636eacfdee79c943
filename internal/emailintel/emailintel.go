// Package emailintel derives the per-sender writing-style fingerprint backing the
// "EMAIL FOLLOW-UPS" briefing section (§3 SenderPattern, SPEC_FULL C13 supplement).
// Grounded on original_source's email_auto_reply.py (_analyze_style's greeting/signoff
// regex tables and confidence-from-history-depth formula), with its 24h pattern cache
// generalized from the teacher's Deduplicator (internal/infra/concurrency/dedup.go) —
// a boolean "seen within window" map turned into a value cache keyed the same way.
package emailintel

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// cacheTTL mirrors the original's 24h re-analysis window.
const cacheTTL = 24 * time.Hour

// MailHistoryReader is the out-of-scope IMAP/SMTP collaborator (§1): given a sender
// address, return the messages we've sent them, most recent first.
type MailHistoryReader interface {
	SentTo(ctx context.Context, senderEmail string, limit int) ([]kb.SentMessage, error)
}

// Analyzer derives and caches SenderPattern values.
type Analyzer struct {
	mail MailHistoryReader

	mu    sync.Mutex
	cache map[string]types.SenderPattern
}

// NewAnalyzer builds an Analyzer bound to a mail history source.
func NewAnalyzer(mail MailHistoryReader) *Analyzer {
	return &Analyzer{mail: mail, cache: map[string]types.SenderPattern{}}
}

// Analyze returns the cached SenderPattern for senderEmail if it's under 24h old,
// otherwise re-derives it from sent-mail history (§4.13 supplement).
func (a *Analyzer) Analyze(ctx context.Context, senderEmail string, now time.Time) (types.SenderPattern, error) {
	a.mu.Lock()
	if cached, ok := a.cache[senderEmail]; ok && now.Sub(cached.CachedAt) < cacheTTL {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	messages, err := a.mail.SentTo(ctx, senderEmail, 50)
	if err != nil {
		return types.SenderPattern{}, err
	}

	pattern := types.SenderPattern{SenderEmail: senderEmail, CachedAt: now}
	if len(messages) == 0 {
		a.store(senderEmail, pattern)
		return pattern, nil
	}

	greeting, signoff, tone := analyzeStyle(messages)
	pattern.ReplyCount = len(messages)
	pattern.TypicalGreeting = greeting
	pattern.TypicalSignoff = signoff
	pattern.Tone = tone
	pattern.Confidence = confidenceFromHistory(len(messages))

	a.store(senderEmail, pattern)
	return pattern, nil
}

func (a *Analyzer) store(senderEmail string, pattern types.SenderPattern) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[senderEmail] = pattern
}

// confidenceFromHistory mirrors the original's "15% per reply, capped at 100%".
func confidenceFromHistory(replyCount int) int {
	c := replyCount * 15
	if c > 100 {
		c = 100
	}
	return c
}

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^(Hi [A-Z][a-z]+,?)`),
	regexp.MustCompile(`(?m)^(Hello [A-Z][a-z]+,?)`),
	regexp.MustCompile(`(?m)^(Hey [A-Z][a-z]+,?)`),
	regexp.MustCompile(`(?m)^(Dear [A-Z][a-z]+,?)`),
	regexp.MustCompile(`(?m)^(Hi,)`),
	regexp.MustCompile(`(?m)^(Hello,)`),
}

var signoffPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(Thanks,?)$`),
	regexp.MustCompile(`(?i)(Thank you,?)$`),
	regexp.MustCompile(`(?i)(Best,?)$`),
	regexp.MustCompile(`(?i)(Best regards,?)$`),
	regexp.MustCompile(`(?i)(Regards,?)$`),
	regexp.MustCompile(`(?i)(Cheers,?)$`),
	regexp.MustCompile(`(?i)(Sincerely,?)$`),
}

// analyzeStyle mirrors _analyze_style: the most frequent greeting/signoff across up to
// the 20 most recent messages, and a tone inferred from formal/casual indicator counts.
func analyzeStyle(messages []kb.SentMessage) (greeting, signoff, tone string) {
	greetings := map[string]int{}
	signoffs := map[string]int{}
	formal, casual := 0, 0

	limit := len(messages)
	if limit > 20 {
		limit = 20
	}

	for _, m := range messages[:limit] {
		body := strings.TrimSpace(m.Body)

		for _, re := range greetingPatterns {
			if m := re.FindStringSubmatch(body); m != nil {
				g := m[1]
				greetings[g]++
				switch {
				case strings.HasPrefix(strings.ToLower(g), "hey"):
					casual++
				case strings.HasPrefix(strings.ToLower(g), "dear"):
					formal++
				}
				break
			}
		}

		for _, re := range signoffPatterns {
			if m := re.FindStringSubmatch(body); m != nil {
				s := m[1]
				signoffs[s]++
				switch {
				case strings.HasPrefix(strings.ToLower(s), "cheers"):
					casual++
				case strings.HasPrefix(strings.ToLower(s), "sincerely"):
					formal++
				}
				break
			}
		}
	}

	greeting = mostCommon(greetings)
	signoff = mostCommon(signoffs)

	switch {
	case formal > casual:
		tone = "formal"
	case casual > formal:
		tone = "casual"
	default:
		tone = "neutral"
	}
	return greeting, signoff, tone
}

func mostCommon(counts map[string]int) string {
	best, bestCount := "", 0
	for k, v := range counts {
		if v > bestCount {
			best, bestCount = k, v
		}
	}
	return best
}
