package eventid

import "testing"

func TestNew_Deterministic(t *testing.T) {
	a := New("Purchase", 1700000000, "order-42", "203.0.113.7")
	b := New("Purchase", 1700000000, "order-42", "203.0.113.7")
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != Length {
		t.Errorf("id length = %d, want %d", len(a), Length)
	}
}

func TestNew_DistinctInputs(t *testing.T) {
	base := New("AddToCart", 1700000000, "10_2", "203.0.113.7")
	for name, other := range map[string]string{
		"different name":          New("ViewContent", 1700000000, "10_2", "203.0.113.7"),
		"different time":          New("AddToCart", 1700000001, "10_2", "203.0.113.7"),
		"different discriminator": New("AddToCart", 1700000000, "10_3", "203.0.113.7"),
		"different ip":            New("AddToCart", 1700000000, "10_2", "203.0.113.8"),
	} {
		if other == base {
			t.Errorf("%s collided with base id %s", name, base)
		}
	}
}

func TestContentsDiscriminator(t *testing.T) {
	a := ContentsDiscriminator([]string{"10", "20"})
	b := ContentsDiscriminator([]string{"10", "20"})
	if a != b {
		t.Errorf("same cart produced different discriminators")
	}
	if c := ContentsDiscriminator([]string{"10", "30"}); c == a {
		t.Errorf("different carts produced the same discriminator")
	}
	if d := ContentsDiscriminator(nil); d == a {
		t.Errorf("empty cart collided with non-empty cart")
	}
}
