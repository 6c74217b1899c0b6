package eventbus

import (
	"errors"
	"reflect"
	"testing"
)

func TestEmitInRegistrationOrder(t *testing.T) {
	b := New[string]()
	var calls []string
	b.Subscribe(Message, func(ev Event[string]) { calls = append(calls, "first:"+ev.Payload) })
	b.Subscribe(Message, func(ev Event[string]) { calls = append(calls, "second:"+ev.Payload) })
	b.Subscribe(Error, func(ev Event[string]) { calls = append(calls, "error") })

	b.Emit(Event[string]{Kind: Message, Payload: "x"})

	if want := []string{"first:x", "second:x"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New[int]()
	count := 0
	sub := b.Subscribe(Connection, func(Event[int]) { count++ })
	b.Subscribe(Connection, func(Event[int]) { count += 10 })

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Emit(Event[int]{Kind: Connection})

	if count != 10 {
		t.Errorf("count = %d, want 10", count)
	}
	if n := b.Len(Connection); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestUnsubscribeDuringEmit(t *testing.T) {
	b := New[int]()
	var sub Subscription
	calls := 0
	sub = b.Subscribe(Disconnection, func(Event[int]) {
		calls++
		b.Unsubscribe(sub)
	})

	b.Emit(Event[int]{Kind: Disconnection})
	b.Emit(Event[int]{Kind: Disconnection})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestErrorEventCarriesErr(t *testing.T) {
	b := New[[]byte]()
	want := errors.New("link lost")
	var got error
	b.Subscribe(Error, func(ev Event[[]byte]) { got = ev.Err })

	b.Emit(Event[[]byte]{Kind: Error, Err: want})

	if !errors.Is(got, want) {
		t.Errorf("err = %v, want %v", got, want)
	}
}
