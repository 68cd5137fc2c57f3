package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// corruptionDetectionMagicValue is the 4-byte pattern copied into debug margins, stored
// little-endian so the bytes read 0x66 0xE6 0x84 0x7F in memory
var corruptionDetectionMagicValue = [4]byte{0x66, 0xE6, 0x84, 0x7F}
