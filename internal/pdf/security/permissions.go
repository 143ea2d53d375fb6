package security

import (
	"fmt"
	"strings"
)

// Permission names, in P bit order.
const (
	PermPrint            = "print"
	PermModify           = "modify"
	PermCopy             = "copy"
	PermAnnotate         = "annotate"
	PermFillForms        = "fill_forms"
	PermAccessibility    = "extract_accessibility"
	PermAssemble         = "assemble"
	PermPrintHighQuality = "print_high_quality"
)

// permissionBits maps each right to its bit in the P entry (bit 1 is the
// least significant)
var permissionBits = []struct {
	name string
	mask int32
}{
	{PermPrint, 1 << 2},
	{PermModify, 1 << 3},
	{PermCopy, 1 << 4},
	{PermAnnotate, 1 << 5},
	{PermFillForms, 1 << 8},
	{PermAccessibility, 1 << 9},
	{PermAssemble, 1 << 10},
	{PermPrintHighQuality, 1 << 11},
}

// Permissions is the P entry of an encryption dictionary
type Permissions int32

// FullPermissions grants every right; unencrypted documents carry it
const FullPermissions Permissions = -1

// Allows reports whether the named right is granted. Unknown names are
// never granted.
func (p Permissions) Allows(name string) bool {
	for _, b := range permissionBits {
		if b.name == name {
			return int32(p)&b.mask != 0
		}
	}
	return false
}

// Allowed lists the granted rights
func (p Permissions) Allowed() []string {
	return p.filter(true)
}

// Denied lists the withheld rights
func (p Permissions) Denied() []string {
	return p.filter(false)
}

func (p Permissions) filter(granted bool) []string {
	out := []string{}
	for _, b := range permissionBits {
		if (int32(p)&b.mask != 0) == granted {
			out = append(out, b.name)
		}
	}
	return out
}

// CanExtract reports whether content may be read out of the document,
// either as a copy or for accessibility.
func (p Permissions) CanExtract() bool {
	return p.Allows(PermCopy) || p.Allows(PermAccessibility)
}

func (p Permissions) String() string {
	denied := p.Denied()
	if len(denied) == 0 {
		return "all permissions granted"
	}
	return fmt.Sprintf("denied: %s", strings.Join(denied, ", "))
}
