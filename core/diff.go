package core

// ChangeType classifies a changed diff line.
type ChangeType string

const (
	// ChangeAdded marks a line present only in the new version of a file.
	ChangeAdded ChangeType = "added"
	// ChangeRemoved marks a line present only in the old version of a file.
	ChangeRemoved ChangeType = "removed"
)

// DiffChange is one added or removed line of a unified diff.
//
// LineNumber is the target line for additions and the source line for
// removals. Zero means the line number is unknown.
type DiffChange struct {
	FilePath   string     `json:"file_path"`
	LineNumber int        `json:"line_number"`
	Content    string     `json:"content"`
	ChangeType ChangeType `json:"change_type"`
}
