package normalize

import "fmt"

// NoteCode classifies a single coercion.
type NoteCode string

const (
	NoteDefaulted     NoteCode = "defaulted"     // missing or unusable value replaced with a placeholder
	NoteClamped       NoteCode = "clamped"       // numeric value moved into range
	NoteCoerced       NoteCode = "coerced"       // value converted from another type
	NoteDropped       NoteCode = "dropped"       // element removed
	NoteRescaled      NoteCode = "rescaled"      // percentages scaled to sum to 100
	NoteRedistributed NoteCode = "redistributed" // all-zero percentages spread evenly
	NoteDerived       NoteCode = "derived"       // color looked up from the emotion name
)

// Note records one field that was not taken as-is from the model output.
type Note struct {
	Path   string   `json:"path"`
	Code   NoteCode `json:"code"`
	Detail string   `json:"detail,omitempty"`
}

func (n Note) String() string {
	if n.Detail == "" {
		return fmt.Sprintf("%s: %s", n.Path, n.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", n.Path, n.Code, n.Detail)
}

type notes []Note

func (ns *notes) add(path string, code NoteCode, detail string, args ...any) {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	*ns = append(*ns, Note{Path: path, Code: code, Detail: detail})
}
