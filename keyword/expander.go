// Package keyword implements CVS keyword substitution: the $Id$-style
// markers RCS rewrites on checkout, and the regexes that expand or collapse
// them.
package keyword

import (
	"fmt"
	"regexp"
	"time"
)

// Recognized CVS keywords.
const (
	Author   = "Author"
	Date     = "Date"
	Header   = "Header"
	Id       = "Id"
	Locker   = "Locker"
	Log      = "Log"
	Name     = "Name"
	RCSfile  = "RCSfile"
	Revision = "Revision"
	Source   = "Source"
	State    = "State"
)

// DefaultDateFormat is the CVS keyword date layout.
const DefaultDateFormat = "2006-01-02 15:04:05"

// OldDateFormat is the CVS 1.11-compatible keyword date layout.
const OldDateFormat = "2006/01/02 15:04:05"

const unsupportedSentinel = "not supported by this exporter"

// Revision carries the per-checkout facts a keyword substitution needs.
type Revision struct {
	Basename string // e.g. "foo.c"
	RevNum   string // e.g. "1.4"
	Date     time.Time
	Author   string
	State    string
	RepoRoot string
	Module   string
	CVSPath  string // path of the file within the module, RCS-suffixed form stripped
}

// Expander substitutes CVS keyword values for one revision.
type Expander struct {
	dateFormat string
}

// New creates an Expander using the default date format.
func New() *Expander {
	return &Expander{dateFormat: DefaultDateFormat}
}

// NewWithOldDateFormat creates an Expander using the CVS 1.11-compatible
// date format.
func NewWithOldDateFormat() *Expander {
	return &Expander{dateFormat: OldDateFormat}
}

// Value returns the substitution text for one recognized keyword against
// rev. It returns false for an unrecognized keyword name.
func (e *Expander) Value(name string, rev Revision) (string, bool) {
	switch name {
	case Author:
		return rev.Author, true
	case Date:
		return rev.Date.UTC().Format(e.dateFormat), true
	case Locker:
		return "", true
	case Log, Name:
		return unsupportedSentinel, true
	case RCSfile:
		return rev.Basename + ",v", true
	case Revision:
		return rev.RevNum, true
	case State:
		return rev.State, true
	case Header:
		date, _ := e.Value(Date, rev)
		source := fmt.Sprintf("%s/%s%s,v", rev.RepoRoot, rev.Module, rev.CVSPath)
		return fmt.Sprintf("%s %s %s %s Exp", source, rev.RevNum, date, rev.Author), true
	case Id:
		date, _ := e.Value(Date, rev)
		return fmt.Sprintf("%s,v %s %s %s Exp", rev.Basename, rev.RevNum, date, rev.Author), true
	case Source:
		return fmt.Sprintf("%s/%s%s,v", rev.RepoRoot, rev.Module, rev.CVSPath), true
	default:
		return "", false
	}
}

// unexpansionPattern matches an already-expanded keyword marker, capturing
// only the keyword name: $Id: foo.c,v 1.4 ...$ → $Id$.
var unexpansionPattern = regexp.MustCompile(`\$([A-Za-z]+):[^$\n]*\$`)

// expansionPattern matches either an expanded or bare keyword marker,
// capturing the keyword name: $Id$ or $Id: ...$.
var expansionPattern = regexp.MustCompile(`\$([A-Za-z]+)(:[^$\n]*)?\$`)

// Unexpand collapses every recognized keyword marker in text down to its
// bare $KW$ form, leaving unrecognized $Foo: ...$ markers untouched.
func Unexpand(text []byte) []byte {
	return unexpansionPattern.ReplaceAllFunc(text, func(m []byte) []byte {
		name := unexpansionPattern.FindSubmatch(m)[1]
		if !isRecognized(string(name)) {
			return m
		}
		return []byte("$" + string(name) + "$")
	})
}

// Expand rewrites every recognized keyword marker in text to its expanded
// $KW: value $ form, using e to compute each value against rev.
func (e *Expander) Expand(text []byte, rev Revision) []byte {
	return expansionPattern.ReplaceAllFunc(text, func(m []byte) []byte {
		name := string(expansionPattern.FindSubmatch(m)[1])
		value, ok := e.Value(name, rev)
		if !ok {
			return m
		}
		return []byte(fmt.Sprintf("$%s: %s $", name, value))
	})
}

func isRecognized(name string) bool {
	switch name {
	case Author, Date, Header, Id, Locker, Log, Name, RCSfile, Revision, Source, State:
		return true
	default:
		return false
	}
}
