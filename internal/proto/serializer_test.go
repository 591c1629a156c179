package proto

import "testing"

func TestSerializeBasicKinds(t *testing.T) {
	cases := []struct {
		name string
		in   Frame
		want string
	}{
		{"simple", SimpleString("OK"), "+OK\r\n"},
		{"error", Err("ERR bad"), "-ERR bad\r\n"},
		{"integer", Integer(1000), ":1000\r\n"},
		{"negative integer", Integer(-1), ":-1\r\n"},
		{"bulk", BulkStringFromText("foo"), "$3\r\nfoo\r\n"},
		{"empty bulk", BulkStringFromText(""), "$0\r\n\r\n"},
		{"null", Null(), "$-1\r\n"},
		{"null array", NullArray(), "*-1\r\n"},
		{"empty array", Array(nil), "*0\r\n"},
		{
			"bulk array",
			Array([]Frame{BulkStringFromText("LLEN"), BulkStringFromText("mylist")}),
			"*2\r\n$4\r\nLLEN\r\n$6\r\nmylist\r\n",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := string(Serialize(c.in)); got != c.want {
				t.Errorf("Serialize(%+v) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	frames := []Frame{
		SimpleString("PONG"),
		Err("WRONGTYPE Operation against a key holding the wrong kind of value"),
		Integer(42),
		BulkStringFromText("hello world"),
		Null(),
		NullArray(),
		Array([]Frame{Integer(1), Integer(2), Integer(3)}),
		Array([]Frame{Array([]Frame{BulkStringFromText("a")}), Null()}),
	}
	for _, f := range frames {
		wire := Serialize(f)
		p := New()
		p.Feed(wire)
		got, status := p.TryParseOne()
		if status != StatusOK {
			t.Fatalf("reparse of %q failed with status %v", wire, status)
		}
		if !got.Equal(f) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, f)
		}
		if p.Pending() != 0 {
			t.Errorf("expected parser fully drained, %d bytes left", p.Pending())
		}
	}
}
