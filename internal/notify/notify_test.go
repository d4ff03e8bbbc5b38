package notify

import (
	"context"
	"testing"
)

func TestChannelSinkDropsOldestWhenFull(t *testing.T) {
	sink := NewChannelSink(2, nil)
	sink.Notify(Notification{Message: "1"})
	sink.Notify(Notification{Message: "2"})
	sink.Notify(Notification{Message: "3"})

	got := sink.Drain()
	if len(got) != 2 {
		t.Fatalf("drain len: want=2 got=%d", len(got))
	}
	if got[0].Message != "2" || got[1].Message != "3" {
		t.Fatalf("drain order: got=%q,%q", got[0].Message, got[1].Message)
	}
	if len(sink.Drain()) != 0 {
		t.Fatalf("second drain should be empty")
	}
}

func TestFanoutSkipsNil(t *testing.T) {
	rec := &Recorder{}
	count := 0
	f := Fanout{nil, rec, Func(func(Notification) { count++ })}
	f.Notify(Notification{Kind: KindRefreshed})
	if len(rec.All()) != 1 || count != 1 {
		t.Fatalf("fanout delivery: recorder=%d func=%d", len(rec.All()), count)
	}
}

func TestRedisBusRequiresAddr(t *testing.T) {
	if _, err := NewRedisBus(context.Background(), nil, RedisOptions{Addr: "x"}); err == nil {
		t.Fatalf("expected error without logger")
	}
	var b *RedisBus
	if err := b.Publish(context.Background(), Notification{}); err == nil {
		t.Fatalf("nil bus publish should error")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("nil bus close: %v", err)
	}
}
