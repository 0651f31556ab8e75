package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPublishFanOutOrder(t *testing.T) {
	b := NewInProc()
	var got []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe(TopicInputText, func(ctx context.Context, msg any) error {
			got = append(got, name)
			return nil
		})
	}

	if err := b.Publish(context.Background(), TopicInputText, InputText{Text: "hi"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("delivered to %d handlers, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestHandlerErrorDoesNotAbortSiblings(t *testing.T) {
	b := NewInProc()
	var secondRan bool
	b.Subscribe(TopicOutputText, func(ctx context.Context, msg any) error {
		return errors.New("boom")
	})
	b.Subscribe(TopicOutputText, func(ctx context.Context, msg any) error {
		secondRan = true
		return nil
	})

	if err := b.Publish(context.Background(), TopicOutputText, OutputText{Text: "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !secondRan {
		t.Error("second handler did not run after first errored")
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	b := NewInProc()
	if err := b.Publish(context.Background(), "nobody.home", struct{}{}); err != nil {
		t.Fatalf("Publish with no subscribers: %v", err)
	}
}

func TestFIFOPerPublisher(t *testing.T) {
	b := NewInProc()
	var mu sync.Mutex
	var seen []string
	b.Subscribe(TopicInputText, func(ctx context.Context, msg any) error {
		mu.Lock()
		seen = append(seen, msg.(InputText).Text)
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d"} {
		if err := b.Publish(ctx, TopicInputText, InputText{Text: text}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	want := "abcd"
	var got string
	for _, s := range seen {
		got += s
	}
	if got != want {
		t.Errorf("delivery order %q, want %q", got, want)
	}
}

func TestConcurrentSubscribePublish(t *testing.T) {
	b := NewInProc()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			b.Subscribe(TopicInputTextPartial, func(ctx context.Context, msg any) error { return nil })
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 50; i++ {
		if err := b.Publish(ctx, TopicInputTextPartial, InputText{}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	<-done
}

func TestDecodePayload(t *testing.T) {
	in, err := decodePayload(TopicInputText, []byte(`{"session_id":"s1","text":"hi","source":"cli","ts":12}`))
	if err != nil {
		t.Fatalf("decodePayload input.text: %v", err)
	}
	evt, ok := in.(InputText)
	if !ok {
		t.Fatalf("decoded %T, want InputText", in)
	}
	if evt.SessionID != "s1" || evt.Text != "hi" || evt.Source != SourceCLI || evt.TS != 12 {
		t.Errorf("decoded %+v", evt)
	}

	out, err := decodePayload(TopicOutputText, []byte(`{"text":"done","thinking":"t"}`))
	if err != nil {
		t.Fatalf("decodePayload output.text: %v", err)
	}
	if o := out.(OutputText); o.Text != "done" || o.Thinking != "t" {
		t.Errorf("decoded %+v", o)
	}

	other, err := decodePayload("custom.topic", []byte(`{"k":1}`))
	if err != nil {
		t.Fatalf("decodePayload custom: %v", err)
	}
	if _, ok := other.(map[string]any); !ok {
		t.Errorf("decoded %T, want map", other)
	}

	if _, err := decodePayload(TopicInputText, []byte("{")); err == nil {
		t.Error("decodePayload accepted malformed JSON")
	}
}
