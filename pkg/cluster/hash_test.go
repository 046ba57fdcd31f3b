package cluster

import "testing"

func TestCrc16(t *testing.T) {
	testTable := []struct {
		data string
		want uint16
	}{
		{"", 0x0000},
		{"123456789", 0x31C3},
	}
	for _, tt := range testTable {
		if got := crc16([]byte(tt.data)); got != tt.want {
			t.Errorf("crc16(%q): expected 0x%04X, got 0x%04X", tt.data, tt.want, got)
		}
	}
}

func TestKeySlot(t *testing.T) {
	// reference values as returned by CLUSTER KEYSLOT
	testTable := []struct {
		key  string
		want Slot
	}{
		{"foo", 12182},
		{"bar", 5061},
		{"hello", 866},
		{"foobar", 12325},
	}
	for _, tt := range testTable {
		if got := KeySlot([]byte(tt.key)); got != tt.want {
			t.Errorf("KeySlot(%q): expected %s, got %s", tt.key, tt.want, got)
		}
	}
}

func TestKeySlotHashTags(t *testing.T) {
	// only the tag between the first '{' and the following '}' is hashed
	if KeySlot([]byte("{user1000}.following")) != KeySlot([]byte("{user1000}.followers")) {
		t.Error("keys sharing a hash tag must hash to the same slot")
	}
	if KeySlot([]byte("foo{bar}{zap}")) != KeySlot([]byte("bar")) {
		t.Error("only the first tag should be hashed")
	}
	// the tag of foo{{bar}}zap is '{bar', the first '}' closes it
	if KeySlot([]byte("foo{{bar}}zap")) != KeySlot([]byte("{bar")) {
		t.Error("nested braces: the tag should be '{bar'")
	}
	// an empty tag falls back to hashing the whole key
	key := []byte("foo{}{bar}")
	if KeySlot(key) != Slot(crc16(key)%HashSlots) {
		t.Error("empty tag should hash the whole key")
	}
	// an unmatched '{' falls back to hashing the whole key
	key = []byte("foo{bar")
	if KeySlot(key) != Slot(crc16(key)%HashSlots) {
		t.Error("unmatched '{' should hash the whole key")
	}
}

func TestIsSameSlotForAllKeys(t *testing.T) {
	testTable := []struct {
		keys [][]byte
		want bool
	}{
		{nil, true},
		{[][]byte{[]byte("foo")}, true},
		{[][]byte{[]byte("{tag}a"), []byte("{tag}b")}, true},
		{[][]byte{[]byte("foo"), []byte("bar")}, false},
	}
	for i, tt := range testTable {
		if got := IsSameSlotForAllKeys(tt.keys...); got != tt.want {
			t.Errorf("[case %d] expected %v, got %v", i, tt.want, got)
		}
	}
}
