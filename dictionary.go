package bintree

// Dictionary maps tag names to dense codes. The first entry (code 1) is the
// document root.
//
// A writer grows its dictionary as new tags are started; a reader loads it
// once from the header and never changes it.
type Dictionary struct {
	names []string
	codes map[string]uint16
}

func newDictionary() *Dictionary {
	return &Dictionary{codes: make(map[string]uint16)}
}

// Len returns the number of distinct tag names.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns tag names in code order.
func (d *Dictionary) Names() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.names...)
}

// Name resolves a code. EndNode and unassigned codes report false.
func (d *Dictionary) Name(code uint16) (string, bool) {
	if d == nil || code == EndNode || int(code) > len(d.names) {
		return "", false
	}
	return d.names[code-1], true
}

// Code returns the code assigned to name.
func (d *Dictionary) Code(name string) (uint16, bool) {
	if d == nil {
		return 0, false
	}
	code, ok := d.codes[name]
	return code, ok
}

// intern returns the existing code for name or assigns the next one. It
// reports false when the 16-bit code space is exhausted.
func (d *Dictionary) intern(name string) (uint16, bool) {
	if code, ok := d.codes[name]; ok {
		return code, true
	}
	if len(d.names) >= MaxCount {
		return 0, false
	}
	d.names = append(d.names, name)
	code := uint16(len(d.names))
	d.codes[name] = code
	return code, true
}
