package bufpool

import "testing"

func TestGetSizesAndBuckets(t *testing.T) {
	cases := []int{1, size4k, size4k + 1, size16k, size64k}
	for _, size := range cases {
		buf := Get(size)
		if len(buf) != size {
			t.Errorf("Get(%d) returned len %d", size, len(buf))
		}
		Put(buf)
	}
}

func TestPutIgnoresNonStandardCapacity(t *testing.T) {
	// Must not panic even though this capacity matches no bucket.
	Put(make([]byte, 123))
}

func TestGetOversizeNotPooled(t *testing.T) {
	buf := Get(size64k + 1)
	if len(buf) != size64k+1 {
		t.Fatalf("got len %d", len(buf))
	}
	Put(buf) // should be a silent no-op, not a panic
}

func TestReuseRoundTrip(t *testing.T) {
	buf := Get(size4k)
	for i := range buf {
		buf[i] = 0xAA
	}
	Put(buf)

	buf2 := Get(size4k)
	defer Put(buf2)
	// Contents are not guaranteed clean; only length/capacity are.
	if len(buf2) != size4k {
		t.Fatalf("got len %d", len(buf2))
	}
}
