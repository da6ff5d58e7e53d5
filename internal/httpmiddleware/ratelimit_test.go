package httpmiddleware

import "testing"

func TestTokenBucket_AllowsUpToCapacity(t *testing.T) {
	l := NewTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Fatal("request over capacity should be denied")
	}
}

func TestTokenBucket_ClientsAreIndependent(t *testing.T) {
	l := NewTokenBucket(1, 1)
	if !l.allow("1.1.1.1") {
		t.Fatal("first client should be allowed")
	}
	if !l.allow("2.2.2.2") {
		t.Fatal("second client has its own bucket")
	}
	if l.allow("1.1.1.1") {
		t.Fatal("first client exhausted its bucket")
	}
}

func TestTokenBucket_DefaultsCapacityToRate(t *testing.T) {
	l := NewTokenBucket(0, 5)
	if l.capacity != 5 {
		t.Fatalf("want capacity 5, got %d", l.capacity)
	}
}
