package object

// DescriptorBits packs a property descriptor's attribute flags plus the
// accessor/data discrimination into one byte, stored in a side table
// parallel to an object's values (OBJECT MODEL §4.5 "Property
// descriptors"). A zero value denotes a tombstoned (deleted) slot.
type DescriptorBits uint8

const (
	Writable DescriptorBits = 1 << iota
	Enumerable
	Configurable
	IsAccessor
	// present distinguishes "descriptor exists with all flags false"
	// from "tombstoned / never written", since the zero value of
	// DescriptorBits must mean "absent" for Delete's tombstone check.
	present
)

// NewDataDescriptor builds descriptor bits for a plain data property.
func NewDataDescriptor(writable, enumerable, configurable bool) DescriptorBits {
	var b DescriptorBits = present
	if writable {
		b |= Writable
	}
	if enumerable {
		b |= Enumerable
	}
	if configurable {
		b |= Configurable
	}
	return b
}

// NewAccessorDescriptor builds descriptor bits for an accessor property.
// Per DATA MODEL §3.4/OBJECT MODEL §4.5, the getter/setter themselves are
// stored as two consecutive Value slots in the values vector; this type
// only records the attribute flags and the accessor discriminant.
func NewAccessorDescriptor(enumerable, configurable bool) DescriptorBits {
	b := IsAccessor | present
	if enumerable {
		b |= Enumerable
	}
	if configurable {
		b |= Configurable
	}
	return b
}

func (b DescriptorBits) Writable() bool     { return b&Writable != 0 }
func (b DescriptorBits) Enumerable() bool   { return b&Enumerable != 0 }
func (b DescriptorBits) Configurable() bool { return b&Configurable != 0 }
func (b DescriptorBits) IsAccessor() bool   { return b&IsAccessor != 0 }
func (b DescriptorBits) Present() bool      { return b&present != 0 }
