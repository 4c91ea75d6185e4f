package assignment

// DateLayout is the calendar date format used in assignment files.
const DateLayout = "2006-01-02"

// Record is one substitution event: Substitute covers ClassName in Period
// on Date, standing in for OriginalTeacher.
// Records are treated as immutable once loaded; duplicates are allowed.
type Record struct {
	OriginalTeacher string `json:"originalTeacher"`
	Substitute      string `json:"substitute" validate:"required"`
	SubstitutePhone string `json:"substitutePhone"`
	Period          int    `json:"period" validate:"gte=0"`
	ClassName       string `json:"className"`
	Date            string `json:"date"`
}
