//go:build debug_mem_utils

package memutils

const (
	// DebugMargin is the number of bytes of canary data that the heap writes into the payload of
	// free blocks large enough to hold it. The canary is checked when the block is handed out again.
	DebugMargin int = 16
)

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes of data at the provided offset.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(data []byte, offset int) {
	dest := data[offset : offset+DebugMargin]
	for i := range dest {
		dest[i] = corruptionDetectionMagicValue[i%len(corruptionDetectionMagicValue)]
	}
}

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_mem_utils build tag is present.
func ValidateMagicValue(data []byte, offset int) bool {
	source := data[offset : offset+DebugMargin]
	for i := range source {
		if source[i] != corruptionDetectionMagicValue[i%len(corruptionDetectionMagicValue)] {
			return false
		}
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}
