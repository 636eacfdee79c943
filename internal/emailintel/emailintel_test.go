package emailintel

import (
	"context"
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/kb"
)

type stubReader struct {
	messages []kb.SentMessage
	calls    int
}

func (s *stubReader) SentTo(ctx context.Context, senderEmail string, limit int) ([]kb.SentMessage, error) {
	s.calls++
	return s.messages, nil
}

func TestAnalyze_NoHistory_ReturnsEmptyPattern(t *testing.T) {
	reader := &stubReader{}
	a := NewAnalyzer(reader)

	p, err := a.Analyze(context.Background(), "nobody@example.com", time.Now())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if p.ReplyCount != 0 || p.Confidence != 0 {
		t.Fatalf("expected empty pattern, got %+v", p)
	}
}

func TestAnalyze_DerivesGreetingSignoffTone(t *testing.T) {
	reader := &stubReader{messages: []kb.SentMessage{
		{Body: "Hi Mike,\n\nSounds good.\n\nBest,"},
		{Body: "Hi Mike,\n\nWorks for me.\n\nBest,"},
		{Body: "Hi Mike,\n\nConfirmed.\n\nBest,"},
	}}
	a := NewAnalyzer(reader)

	p, err := a.Analyze(context.Background(), "mike@example.com", time.Now())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if p.TypicalGreeting != "Hi Mike," || p.TypicalSignoff != "Best," {
		t.Fatalf("unexpected style: %+v", p)
	}
	if p.Tone != "neutral" {
		t.Fatalf("expected neutral tone, got %s", p.Tone)
	}
	if p.Confidence != 45 {
		t.Fatalf("expected confidence 45 (3 replies * 15), got %d", p.Confidence)
	}
}

func TestAnalyze_CachesWithin24Hours(t *testing.T) {
	reader := &stubReader{messages: []kb.SentMessage{{Body: "Hi Mike,\n\nBest,"}}}
	a := NewAnalyzer(reader)
	now := time.Now()

	if _, err := a.Analyze(context.Background(), "mike@example.com", now); err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	if _, err := a.Analyze(context.Background(), "mike@example.com", now.Add(time.Hour)); err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("expected cache hit to avoid re-reading history, got %d calls", reader.calls)
	}

	if _, err := a.Analyze(context.Background(), "mike@example.com", now.Add(25*time.Hour)); err != nil {
		t.Fatalf("third analyze: %v", err)
	}
	if reader.calls != 2 {
		t.Fatalf("expected cache expiry to trigger re-read, got %d calls", reader.calls)
	}
}

func TestAnalyze_CasualTone(t *testing.T) {
	reader := &stubReader{messages: []kb.SentMessage{
		{Body: "Hey Sam,\n\nSure thing.\n\nCheers,"},
	}}
	a := NewAnalyzer(reader)

	p, err := a.Analyze(context.Background(), "sam@example.com", time.Now())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if p.Tone != "casual" {
		t.Fatalf("expected casual tone, got %s", p.Tone)
	}
}
