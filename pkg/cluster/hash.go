package cluster

import "bytes"

// crc16 implements CRC-16/XModem (polynomial 0x1021, initial value 0x0000),
// the checksum used by the cluster key-to-slot algorithm
func crc16(data []byte) uint16 {
	crc := uint16(0)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// KeySlot returns the hash slot serving the given key.
// When the key contains a hash tag, the substring between the first '{' and
// the following '}', only the tag is hashed, so that callers can co-locate
// related keys on the same slot. An empty tag ('{}') or an unmatched '{'
// falls back to hashing the whole key.
func KeySlot(key []byte) Slot {
	if pos := bytes.IndexByte(key, '{'); pos != -1 {
		pos++
		if end := bytes.IndexByte(key[pos:], '}'); end > 0 {
			return Slot(crc16(key[pos:pos+end]) % HashSlots)
		}
	}
	return Slot(crc16(key) % HashSlots)
}

// IsSameSlotForAllKeys returns true if all given keys hash to the same slot.
// True for zero or one key.
func IsSameSlotForAllKeys(keys ...[]byte) bool {
	if len(keys) < 2 {
		return true
	}
	slot := KeySlot(keys[0])
	for _, key := range keys[1:] {
		if KeySlot(key) != slot {
			return false
		}
	}
	return true
}
